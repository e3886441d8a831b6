package shield

import "net/http"

// MaxUploadBody returns middleware that caps the request body size on
// methods that carry one. Document uploads are multipart, so the limit
// applies regardless of content type.
func MaxUploadBody(maxBytes int64) func(http.Handler) http.Handler {
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
