package wsgateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// InfoFunc returns the body of the /info endpoint.
type InfoFunc func() any

// NewServer builds the host HTTP server: /ws for peers, /health and /info.
func NewServer(addr string, hub *Hub, info InfoFunc) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleConnection)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"service":     "timespeed-host",
			"connections": hub.Stats()["total_connections"],
			"players":     hub.Players(),
		}
		if info != nil {
			body["state"] = info()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Error().Err(err).Msg("failed to write info response")
		}
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}
