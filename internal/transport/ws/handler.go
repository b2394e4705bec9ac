package ws

import (
	"log"
	"net/http"

	"github.com/vedran77/chatter/internal/service"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that authenticates and upgrades to
// WebSocket. Auth is done via ?token=xxx query param (WebSocket can't
// send headers) and is evaluated once per connection attempt; no event
// handler is reachable before it succeeds.
func ServeWS(hub *Hub, chat *service.ChatService, auth *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		user, err := auth.Authenticate(r.Context(), tokenStr)
		if err != nil {
			if err != service.ErrInvalidToken {
				log.Printf("ws: authenticate: %v", err)
			}
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			log.Printf("ws: accept error: %v", err)
			return
		}

		client := NewClient(hub, conn, user, chat)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
