package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"forumsync/internal/model"

	"github.com/gorilla/websocket"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedBufferSize = 64
)

// feedMessage mirrors the hub's envelope.
type feedMessage struct {
	Type    string              `json:"type"`
	Payload *model.CommentEvent `json:"payload"`
}

// Feed subscribes to comment events of a post. The returned channel is closed when
// ctx is cancelled or the connection drops; the error channel carries at most one
// error describing why a connection ended early.
func (c *Client) Feed(ctx context.Context, postID int64) (<-chan model.CommentEvent, <-chan error, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return nil, nil, fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"postId": {strconv.FormatInt(postID, 10)}}.Encode()

	header := http.Header{}
	if c.userEmail != "" {
		header.Set("X-User-Email", c.userEmail)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, nil, fmt.Errorf("dial feed: %w", err)
	}

	events := make(chan model.CommentEvent, feedBufferSize)
	errs := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(feedPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(feedWriteWait))
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		defer close(events)
		defer close(done)
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					errs <- err
				}
				return
			}
			// The hub may batch several messages separated by newlines.
			for _, line := range strings.Split(string(data), "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				var msg feedMessage
				if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Type != model.FeedMessageComment || msg.Payload == nil {
					continue
				}
				select {
				case events <- *msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, errs, nil
}
