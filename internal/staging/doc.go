// Package staging reclaims download staging directories left behind by
// interrupted runs.
package staging
