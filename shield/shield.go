// Package shield holds the HTTP middleware shared by the adrpg services.
//
//	r := chi.NewRouter()
//	r.Use(middleware.Recoverer)
//	r.Use(shield.RequestLog(logger))
//	r.Use(shield.AllowAnyOrigin)
//	r.Use(shield.MaxBody(1 << 20))
package shield

import "net/http"

// AllowAnyOrigin lets pages on any origin call the service and answers
// CORS preflights itself.
func AllowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBody caps request bodies at maxBytes. Reads past the cap fail.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
