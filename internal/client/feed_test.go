package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"forumsync/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedDecodesCommentMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "6", r.URL.Query().Get("postId"))
		assert.Equal(t, "me@example.com", r.Header.Get("X-User-Email"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		batch := `{"type":"pong"}` + "\n" +
			`{"type":"comment_event","payload":{"type":"comment.created","postId":6,"comment":{"id":3,"forumPostId":6,"content":"hi"}}}`
		conn.WriteMessage(websocket.TextMessage, []byte(batch))
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(srv.URL, WithUserEmail("me@example.com"))
	events, _, err := c.Feed(ctx, 6)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, model.EventCommentCreated, ev.Type)
		require.NotNil(t, ev.Comment)
		assert.Equal(t, int64(3), ev.Comment.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestFeedClosesSocketWhenServerEndsSession(t *testing.T) {
	upgrader := websocket.Upgrader{}
	closed := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))

		// Read raw bytes: the client's close reply, then EOF once it drops the
		// connection. A deadline error means the socket was left open.
		raw := conn.NetConn()
		raw.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 256)
		for {
			if _, err := raw.Read(buf); err != nil {
				closed <- err
				return
			}
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithUserEmail("me@example.com"))
	events, errs, err := c.Feed(context.Background(), 6)
	require.NoError(t, err)

	for range events {
	}
	select {
	case err := <-errs:
		t.Fatalf("normal closure reported as error: %v", err)
	default:
	}

	err = <-closed
	require.Error(t, err)
	var ne net.Error
	assert.False(t, errors.As(err, &ne) && ne.Timeout(), "client kept the socket open: %v", err)
}
