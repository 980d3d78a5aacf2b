// Package preflight provides readiness checks for the binaries, paths and
// credentials a vhxdl run depends on.
//
// The CLI "vhxdl check" command prints every result; "vhxdl run" calls
// RunAll before the first pipeline run and refuses to start when a required
// check fails, so a misconfigured watch daemon fails fast instead of at the
// first scheduled trigger.
package preflight
