package server

import (
	"net/http"

	"github.com/pingit/chat-relay/internal/realtime"
)

// NewRouter assembles the HTTP surface: the message API behind bearer-token
// auth, the health probes, and the websocket endpoint of the relay gateway.
// The CORS allow-list guards both channels.
func NewRouter(ms *MessageServer, hub *realtime.Hub, verifier *Verifier, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("API is running successfully"))
	})
	mux.HandleFunc("GET /health", ms.Health)

	mux.Handle("GET /api/message/{chatId}", verifier.Middleware(http.HandlerFunc(ms.ListMessages)))
	mux.Handle("POST /api/message", verifier.Middleware(http.HandlerFunc(ms.SendMessage)))

	mux.HandleFunc("GET /ws", hub.ServeWS)

	return CORS(allowedOrigins, mux)
}
