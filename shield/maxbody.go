package shield

import "net/http"

// MaxBody returns middleware that caps request body size on mutating
// methods. Uploaded photos arrive as data URIs inside JSON, so the cap
// has to leave room for a base64-encoded image.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
