package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/Suhaibinator/shovel/pkg/envelope"
)

// CORSConfig defines the allowed cross-origin requests.
type CORSConfig struct {
	Origins []string // Allowed origins; "*" allows any
	Methods []string // Allowed methods for preflight requests
	Headers []string // Allowed request headers for preflight requests
}

// CORS sets the CORS headers for allowed origins. Preflight requests are
// answered with an empty 204 that is never enveloped.
func CORS(config CORSConfig) Middleware {
	allowAny := slices.Contains(config.Origins, "*")
	methods := strings.Join(config.Methods, ", ")
	headers := strings.Join(config.Headers, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAny || slices.Contains(config.Origins, origin)) {
				h := w.Header()
				if allowAny {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				if methods != "" {
					h.Set("Access-Control-Allow-Methods", methods)
				}
				if headers != "" {
					h.Set("Access-Control-Allow-Headers", headers)
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				envelope.MarkBypass(w)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
