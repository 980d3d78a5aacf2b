// Package main hosts the vhxdl CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, applies command-line overrides
// and assembles the pipeline from the internal packages: the API client and
// token authority, the catalog resolver, the download dispatcher with its
// yt-dlp agent, the history ledger, notifications and the watch scheduler.
// Subcommands stay thin; behaviour lives in internal/.
package main
