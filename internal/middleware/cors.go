package middleware

import "net/http"

// CORS allows the listed browser origins. A "*" entry allows any origin
// without credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowedOrigins))
	wildcard := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
			continue
		}
		allow[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				_, listed := allow[origin]
				if listed || wildcard {
					h := w.Header()
					h.Add("Vary", "Origin")
					if listed {
						h.Set("Access-Control-Allow-Origin", origin)
						h.Set("Access-Control-Allow-Credentials", "true")
					} else {
						h.Set("Access-Control-Allow-Origin", "*")
					}
					h.Set("Access-Control-Allow-Headers", "Content-Type, X-Session-ID, X-Request-ID")
					h.Set("Access-Control-Expose-Headers", "X-Session-ID, X-Request-ID, Retry-After")
					h.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
