package middleware

import (
	"net/http"
	"strings"

	"github.com/Buildathonzx/whisperrnote/internal/config"
)

// CORSMiddleware stamps cross-origin headers from the server's CORS
// configuration and short-circuits preflight requests. The origin
// allowlist is split once at construction; "*" admits any origin.
func CORSMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := strings.Split(cfg.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			for _, allowed := range origins {
				if allowed != "*" && allowed != origin {
					continue
				}
				if origin != "" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				} else if allowed == "*" {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				break
			}

			w.Header().Set("Access-Control-Allow-Methods", cfg.AllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", cfg.AllowedHeaders)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
