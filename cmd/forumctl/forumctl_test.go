package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"forumsync/internal/app"
	"forumsync/internal/client"
	"forumsync/internal/config"
	"forumsync/internal/model"
	"forumsync/internal/repository"
	"forumsync/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repository.NewMemoryStore()
	svc := app.Services{
		Comments:  service.NewCommentService(store.Comments(), nil, log),
		Reactions: service.NewReactionService(store.Reactions(), store.Comments()),
		Reports:   service.NewReportService(store.Reports(), store.Comments(), nil, log),
	}
	cfg := &config.Config{UploadDir: t.TempDir(), LogLevel: "error"}
	srv := httptest.NewServer(app.NewRouter(cfg, svc, nil, log))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) string {
	t.Helper()
	chdir(t, t.TempDir())
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--api", srv.URL, "--user", "ann@example.com", "--markers", "memory", "--log-level", "error"}, args...))
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestThreadLifecycle(t *testing.T) {
	srv := startBackend(t)

	out := run(t, srv, "reply", "1", "first root")
	assert.Contains(t, out, "created comment 1")
	out = run(t, srv, "reply", "1", "1", "a reply")
	assert.Contains(t, out, "created comment 2")

	out = run(t, srv, "thread", "1")
	assert.Contains(t, out, "Post 1: 2 comments")
	assert.Contains(t, out, "first root")
	assert.Contains(t, out, "a reply")
	assert.Contains(t, out, "1 replies")

	out = run(t, srv, "thread", "1", "--shallow")
	assert.Contains(t, out, "replies not loaded")

	out = run(t, srv, "edit", "2", "edited reply", "--post", "1")
	assert.Contains(t, out, "comment 2: edited reply")

	out = run(t, srv, "like", "2", "--post", "1")
	assert.Contains(t, out, "liked comment 2 (1 likes)")
	out = run(t, srv, "like", "2", "--post", "1")
	assert.Contains(t, out, "unliked comment 2 (0 likes)")

	out = run(t, srv, "report", "2", "--post", "1", "--reason", "spam")
	assert.Contains(t, out, "reported comment 2: spam")
	out = run(t, srv, "report", "2", "--post", "1", "--reason", "spam")
	assert.Contains(t, out, "already reported")

	out = run(t, srv, "delete", "1", "--post", "1", "--yes")
	assert.Contains(t, out, "deleted comment 1")

	remaining, err := client.New(srv.URL).PostComments(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, remaining, "the reply went with its parent")
}

func TestRequiresUser(t *testing.T) {
	srv := startBackend(t)
	chdir(t, t.TempDir())
	t.Setenv("USER_EMAIL", "")
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--api", srv.URL, "--markers", "memory", "thread", "1"})
	assert.Error(t, cmd.Execute())
}

func TestDescribeEvent(t *testing.T) {
	parent := int64(3)
	assert.Equal(t, "+ #4 bob replied to #3: hi", describeEvent(model.CommentEvent{
		Type:    model.EventCommentCreated,
		Comment: &model.Comment{ID: 4, Username: "bob", ParentCommentID: &parent, Content: "hi"},
	}))
	assert.Equal(t, "- #4 deleted", describeEvent(model.CommentEvent{
		Type:    model.EventCommentDeleted,
		Comment: &model.Comment{ID: 4},
	}))
}
