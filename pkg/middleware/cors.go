package middleware

import (
	"net/http"
	"slices"
)

// CORS applies the relay's cross-origin policy. Only allow-listed origins
// are echoed back; every other origin gets the allow-list's first entry, so
// an unlisted origin still receives a response but never a credentialed
// grant for itself. OPTIONS preflights short-circuit here — no room is
// touched by a preflight.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowedOrigins) > 0 {
				allow := allowedOrigins[0]
				if origin := r.Header.Get("Origin"); origin != "" && slices.Contains(allowedOrigins, origin) {
					allow = origin
				}
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allow)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
