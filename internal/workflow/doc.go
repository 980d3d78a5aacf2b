// Package workflow runs the download pipeline once: resolve the configured
// selectors into jobs, dispatch them in order (or through a bounded worker
// pool), apply the missing-stream policy, and report a Summary.
//
// The scheduler decides when runs happen; this package only decides what a
// run does.
package workflow
