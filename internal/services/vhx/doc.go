// Package vhx talks to the Vimeo OTT (formerly VHX) platform API.
//
// TokenAuthority performs the OAuth password grant, caches the bearer token
// until it expires and decorates outgoing requests as an http.RoundTripper.
// Client exposes the typed, site-scoped calls the downloader needs
// (collections, videos, delivery manifests) and FetchAll walks paginated
// listings.
package vhx
