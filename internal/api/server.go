package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured. The class
// creation endpoint is admin-only: API-key auth guards the transport, the
// access gate checks the caller identity inside the handler.
func NewServer(port string, h *Handler, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/purchase/stable", h.PurchaseStable)
	mux.HandleFunc("POST /api/v1/purchase/native", h.PurchaseNative)
	mux.HandleFunc("POST /api/v1/deposit", h.Deposit)
	mux.HandleFunc("GET /api/v1/rate", h.GetRate)
	mux.HandleFunc("GET /api/v1/quote", h.GetQuote)
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("GET /api/v1/status", h.GetStatus)

	createHandler := http.HandlerFunc(h.CreateClass)
	if adminAPIKey != "" {
		mux.Handle("POST /api/v1/class", requireAuth(adminAPIKey, createHandler))
	} else {
		mux.Handle("POST /api/v1/class", createHandler)
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
