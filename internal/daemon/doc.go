// Package daemon wraps watch mode in a single-instance lifecycle.
//
// A flock-held lock file in the state directory keeps two watch processes
// from running against the same state at once. The lock is released when
// the scheduler returns.
package daemon
