// Package catalog resolves user selectors (series and video ids or slugs)
// into ordered download jobs and owns the destination naming rules.
package catalog
