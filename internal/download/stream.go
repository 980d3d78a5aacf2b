package download

import "vhxdl/internal/services/vhx"

// DefaultStreamMethod is the adaptive streaming method requested from the
// delivery manifest.
const DefaultStreamMethod = "dash"

// SelectStream returns the first stream whose method equals method.
func SelectStream(manifest vhx.DeliveryManifest, method string) (vhx.Stream, bool) {
	for _, stream := range manifest.Streams {
		if stream.Method == method && stream.URL != "" {
			return stream, true
		}
	}
	return vhx.Stream{}, false
}

func methods(manifest vhx.DeliveryManifest) []string {
	out := make([]string, 0, len(manifest.Streams))
	for _, stream := range manifest.Streams {
		out = append(out, stream.Method)
	}
	return out
}
