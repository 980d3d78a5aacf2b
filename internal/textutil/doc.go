// Package textutil provides filename sanitisation helpers for the catalog
// resolver.
package textutil
