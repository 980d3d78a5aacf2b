// Package ytdlp adapts the yt-dlp command line tool into the download
// agent used by the dispatcher. Commands are built with go-ytdlp; the
// binary is either the configured executable or a managed build fetched on
// first use.
package ytdlp
