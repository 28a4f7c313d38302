package websocket

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development, restrict in production
		return true
	},
}

// ServeWS subscribes a connection to the comment events of ?postId=
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := strconv.ParseInt(r.URL.Query().Get("postId"), 10, 64)
		if err != nil || postID <= 0 {
			http.Error(w, "postId query parameter required", http.StatusBadRequest)
			return
		}

		userEmail := r.Header.Get("X-User-Email")
		if userEmail == "" {
			userEmail = r.URL.Query().Get("userEmail")
		}

		// Upgrade connection to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.WithError(err).Warn("WebSocket upgrade error")
			return
		}

		client := NewClient(hub, conn, postID, userEmail)
		if !hub.join(client) {
			conn.Close()
			return
		}

		go client.Start()
	}
}
