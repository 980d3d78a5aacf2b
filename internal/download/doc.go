// Package download turns a resolved catalog job into a file on disk.
//
// Dispatch is idempotent: a job whose destination already exists is skipped
// before any network call. Otherwise the destination is claimed with a file
// lock, the delivery manifest is fetched, the adaptive stream is handed to
// the download agent, and the merged output is renamed into place from a
// per-attempt staging directory so partial files never occupy the final
// path.
package download
