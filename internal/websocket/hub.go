package websocket

import (
	"context"
	"sync"

	"forumsync/internal/model"

	"github.com/sirupsen/logrus"
)

// Hub maintains the set of active clients per post and fans comment events out
// to them
type Hub struct {
	// Registered clients by post ID
	clients map[int64]map[*Client]bool

	// Outbound messages for a post's clients
	broadcast chan *Message

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed once Run returns
	done chan struct{}

	// Mutex for thread-safe operations
	mu sync.RWMutex

	log logrus.FieldLogger
}

// Message represents a WebSocket message
type Message struct {
	PostID  int64       `json:"postId,omitempty"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewHub creates a new Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for postID, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, postID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.PostID] == nil {
				h.clients[client.PostID] = make(map[*Client]bool)
			}
			h.clients[client.PostID][client] = true
			n := len(h.clients[client.PostID])
			h.mu.Unlock()
			h.log.WithFields(logrus.Fields{"post_id": client.PostID, "user": client.UserEmail, "clients": n}).Debug("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.PostID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.PostID)
					}
				}
			}
			h.mu.Unlock()
			h.log.WithField("post_id", client.PostID).Debug("Client unregistered")

		case message := <-h.broadcast:
			h.mu.Lock()
			if clients, ok := h.clients[message.PostID]; ok {
				for client := range clients {
					select {
					case client.send <- message:
					default:
						// Slow consumer; drop it rather than stall the hub.
						close(client.send)
						delete(clients, client)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, message.PostID)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// sendTo queues a message for one client. send is only closed under h.mu, so
// checking membership under the read lock keeps this from racing a close.
func (h *Hub) sendTo(c *Client, m *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c.PostID][c] {
		return
	}
	select {
	case c.send <- m:
	default:
	}
}

// PublishCommentEvent sends a comment change to every client watching the post
func (h *Hub) PublishCommentEvent(ev model.CommentEvent) {
	event := ev
	message := &Message{
		PostID:  ev.PostID,
		Type:    model.FeedMessageComment,
		Payload: &event,
	}

	select {
	case h.broadcast <- message:
	default:
		h.log.WithField("post_id", ev.PostID).Warn("Broadcast channel full, dropping comment event")
	}
}

// ClientCount returns the number of clients watching a post
func (h *Hub) ClientCount(postID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[postID])
}

// TotalClientCount returns the total number of connected clients
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
