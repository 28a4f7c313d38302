package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"forumsync/internal/model"
	"forumsync/internal/repository"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type eventLog struct {
	mu     sync.Mutex
	events []model.CommentEvent
}

func (e *eventLog) PublishCommentEvent(ev model.CommentEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

type publishLog struct {
	exchange, key string
	payloads      []interface{}
	err           error
}

func (p *publishLog) PublishJSON(_ context.Context, exchange, routingKey string, payload interface{}) error {
	p.exchange, p.key = exchange, routingKey
	p.payloads = append(p.payloads, payload)
	return p.err
}

func int64p(v int64) *int64 { return &v }

func TestCommentLifecycle(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	events := &eventLog{}
	svc := NewCommentService(store.Comments(), events, quietLogger())

	root, err := svc.CreateComment(ctx, model.CommentInput{ForumPostID: 1, Content: " root ", UserEmail: "ann@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "root", root.Content)
	assert.Equal(t, "ann", root.Username)
	assert.Equal(t, model.NoImage, root.ImgPath)

	reply, err := svc.CreateComment(ctx, model.CommentInput{ForumPostID: 1, Content: "reply", UserEmail: "bob@example.com", ParentCommentID: int64p(root.ID)})
	require.NoError(t, err)
	nested, err := svc.CreateComment(ctx, model.CommentInput{ForumPostID: 1, Content: "nested", UserEmail: "ann@example.com", ParentCommentID: int64p(reply.ID)})
	require.NoError(t, err)

	all, err := svc.GetCommentsByPostID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, nested.ID, all[0].ID, "newest first")

	replies, err := svc.GetReplies(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)

	_, err = svc.UpdateComment(ctx, reply.ID, model.CommentInput{ForumPostID: 1, Content: "hijack", UserEmail: "ann@example.com"})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateComment(ctx, reply.ID, model.CommentInput{ForumPostID: 1, Content: "edited", UserEmail: "bob@example.com", ParentCommentID: int64p(999)})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.Equal(t, root.ID, *updated.ParentCommentID)

	assert.ErrorIs(t, svc.DeleteComment(ctx, reply.ID, "ann@example.com"), ErrForbidden)
	require.NoError(t, svc.DeleteComment(ctx, reply.ID, "bob@example.com"))

	all, err = svc.GetCommentsByPostID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 1, "replies below a deleted comment go with it")

	_, err = svc.GetReplies(ctx, reply.ID)
	assert.ErrorIs(t, err, ErrCommentNotFound)

	kinds := make([]string, 0, len(events.events))
	for _, ev := range events.events {
		kinds = append(kinds, ev.Type)
		assert.Equal(t, int64(1), ev.PostID)
	}
	assert.Equal(t, []string{
		model.EventCommentCreated, model.EventCommentCreated, model.EventCommentCreated,
		model.EventCommentUpdated, model.EventCommentDeleted,
	}, kinds)
}

func TestCreateCommentParentChecks(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := NewCommentService(store.Comments(), nil, quietLogger())

	_, err := svc.CreateComment(ctx, model.CommentInput{ForumPostID: 1, Content: "x", UserEmail: "a@example.com", ParentCommentID: int64p(5)})
	assert.ErrorIs(t, err, ErrParentNotFound)

	root, err := svc.CreateComment(ctx, model.CommentInput{ForumPostID: 1, Content: "x", UserEmail: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, model.CommentInput{ForumPostID: 2, Content: "x", UserEmail: "a@example.com", ParentCommentID: int64p(root.ID)})
	assert.ErrorIs(t, err, ErrParentMismatch)
}

func TestReactions(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	comments := NewCommentService(store.Comments(), nil, quietLogger())
	svc := NewReactionService(store.Reactions(), store.Comments())

	c, err := comments.CreateComment(ctx, model.CommentInput{ForumPostID: 1, Content: "x", UserEmail: "a@example.com"})
	require.NoError(t, err)

	_, err = svc.AddReaction(ctx, model.ReactionInput{TargetType: model.TargetTypeComment, TargetID: c.ID, UserEmail: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.AddReaction(ctx, model.ReactionInput{TargetType: model.TargetTypeComment, TargetID: c.ID, UserEmail: "b@example.com", ReactionType: model.ReactionDislike})
	require.NoError(t, err)

	sum, err := svc.GetSummary(ctx, model.TargetTypeComment, c.ID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.ReactionSummary{LikeCount: 1, DislikeCount: 1, UserReaction: model.ReactionLike}, *sum)

	// Switching replaces the earlier reaction.
	_, err = svc.AddReaction(ctx, model.ReactionInput{TargetType: model.TargetTypeComment, TargetID: c.ID, UserEmail: "b@example.com", ReactionType: model.ReactionLike})
	require.NoError(t, err)
	sum, err = svc.GetSummary(ctx, model.TargetTypeComment, c.ID, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.LikeCount)
	assert.Zero(t, sum.DislikeCount)

	listed, err := comments.GetCommentsByPostID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), listed[0].LikeCount)

	require.NoError(t, svc.RemoveReaction(ctx, model.TargetTypeComment, c.ID, "a@example.com"))
	require.NoError(t, svc.RemoveReaction(ctx, model.TargetTypeComment, c.ID, "a@example.com"))
	sum, err = svc.GetSummary(ctx, model.TargetTypeComment, c.ID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.LikeCount)
	assert.Empty(t, sum.UserReaction)

	_, err = svc.AddReaction(ctx, model.ReactionInput{TargetType: model.TargetTypeComment, TargetID: 404, UserEmail: "a@example.com"})
	assert.ErrorIs(t, err, ErrCommentNotFound)
	_, err = svc.AddReaction(ctx, model.ReactionInput{TargetType: model.TargetTypeComment, TargetID: c.ID, UserEmail: "a@example.com", ReactionType: "LOVE"})
	assert.ErrorIs(t, err, ErrInvalidReaction)
}

func TestReportOncePerReporter(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	comments := NewCommentService(store.Comments(), nil, quietLogger())
	pub := &publishLog{}
	svc := NewReportService(store.Reports(), store.Comments(), pub, quietLogger())

	c, err := comments.CreateComment(ctx, model.CommentInput{ForumPostID: 1, Content: "x", UserEmail: "a@example.com"})
	require.NoError(t, err)

	in := model.ReportInput{TargetType: model.TargetTypeComment, TargetID: c.ID, Reasons: []string{"spam", " ", "abuse"}}
	report, err := svc.CreateReport(ctx, "r@example.com", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam", "abuse"}, report.GetReasons())

	_, err = svc.CreateReport(ctx, "r@example.com", in)
	assert.ErrorIs(t, err, ErrDuplicateReport)

	_, err = svc.CreateReport(ctx, "other@example.com", in)
	require.NoError(t, err)

	assert.Equal(t, ReportExchange, pub.exchange)
	assert.Equal(t, ReportRoutingKey, pub.key)
	require.Len(t, pub.payloads, 2)
	msg := pub.payloads[0].(ReportMessage)
	assert.Equal(t, "r@example.com", msg.Reporter)

	_, err = svc.CreateReport(ctx, "r@example.com", model.ReportInput{TargetType: model.TargetTypeComment, TargetID: 404, Reasons: []string{"spam"}})
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestReportPublishFailureKeepsReport(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	pub := &publishLog{err: errors.New("broker down")}
	svc := NewReportService(store.Reports(), store.Comments(), pub, quietLogger())

	_, err := svc.CreateReport(ctx, "r@example.com", model.ReportInput{TargetType: model.TargetTypePost, TargetID: 3, Reasons: []string{"spam"}})
	require.NoError(t, err)
	ok, err := store.Reports().Exists(ctx, model.TargetTypePost, 3, "r@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

type chanSource struct {
	ch chan amqp.Delivery
}

func (s chanSource) ConsumeQueue(exchange, queue, routingKey, consumer string) (<-chan amqp.Delivery, error) {
	return s.ch, nil
}

func TestReportWorker(t *testing.T) {
	w := NewReportWorker(nil, quietLogger())
	assert.NoError(t, w.Start(), "no broker means no worker")

	body, err := json.Marshal(ReportMessage{ReportID: 1, TargetType: "COMMENT", TargetID: 5, Reporter: "r@example.com"})
	require.NoError(t, err)
	assert.NoError(t, w.processReportMessage(body))
	assert.Error(t, w.processReportMessage([]byte("{")))
	assert.Error(t, w.processReportMessage([]byte(`{"reportId":2}`)))

	src := chanSource{ch: make(chan amqp.Delivery, 2)}
	w = NewReportWorker(src, quietLogger())
	require.NoError(t, w.Start())
	src.ch <- amqp.Delivery{Body: body}
	close(src.ch)
	w.Stop()
}
