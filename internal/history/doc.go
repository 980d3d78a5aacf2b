// Package history keeps a SQLite ledger of completed downloads.
//
// The ledger is informational: the presence of a destination file, not a
// history row, decides whether a job is skipped. Rows are keyed by
// destination path so re-downloading a file after it was deleted replaces
// the previous entry.
package history
