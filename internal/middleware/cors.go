package middleware

import "net/http"

// CORSConfig holds configuration for the CORS middleware
type CORSConfig struct {
	// AllowedOrigin is the single origin to allow. Empty disables CORS
	// headers entirely.
	AllowedOrigin string
	// AllowCredentials controls Access-Control-Allow-Credentials.
	AllowCredentials bool
}

// CORS returns a middleware that sets CORS headers and answers preflight
// requests. The API is read-only, so only GET and its preflight are allowed.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if config.AllowedOrigin == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", config.AllowedOrigin)
			if config.AllowedOrigin != "*" {
				w.Header().Add("Vary", "Origin")
			}
			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Range, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
