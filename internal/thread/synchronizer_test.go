package thread

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"forumsync/internal/client"
	"forumsync/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const me = "me@example.com"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestSync(t *testing.T, f *fakeBackend, opts ...Option) *Synchronizer {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(f, me, opts...)
}

func ids(comments []model.Comment) []int64 {
	out := make([]int64, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.ID)
	}
	return out
}

// post 1: 10 -> 11 -> 12, 10 -> 13; 20 -> 21
func seedTree(f *fakeBackend) {
	f.seed(model.Comment{ID: 10, ForumPostID: 1, Content: "C1"})
	f.seed(model.Comment{ID: 11, ForumPostID: 1, ParentCommentID: ptr(10), Content: "R1"})
	f.seed(model.Comment{ID: 12, ForumPostID: 1, ParentCommentID: ptr(11), Content: "R1.1"})
	f.seed(model.Comment{ID: 13, ForumPostID: 1, ParentCommentID: ptr(10), Content: "R3"})
	f.seed(model.Comment{ID: 20, ForumPostID: 1, Content: "C2"})
	f.seed(model.Comment{ID: 21, ForumPostID: 1, ParentCommentID: ptr(20), Content: "R2.1"})
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.seed(model.Comment{ID: 10, ForumPostID: 1, Content: "C1"})
	f.seed(model.Comment{ID: 11, ForumPostID: 1, ParentCommentID: ptr(10), Content: "R1"})
	s := newTestSync(t, f)

	roots, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids(roots))

	children, err := s.Expand(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, ids(children))
	assert.Equal(t, 1, s.TotalCount(10))

	r2, err := s.AddComment(ctx, 1, ptr(10), "R2", nil)
	require.NoError(t, err)
	children, _ = s.Children(10)
	assert.Equal(t, []int64{r2.ID, 11}, ids(children))
	assert.Equal(t, 2, s.TotalCount(10))

	require.NoError(t, s.Delete(ctx, 11, AutoConfirm))
	children, _ = s.Children(10)
	assert.Equal(t, []int64{r2.ID}, ids(children))
	assert.Equal(t, 1, s.TotalCount(10))
}

func TestLoadPostKeepsRootsOnly(t *testing.T) {
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)

	roots, err := s.LoadPost(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 10}, ids(roots))

	_, ok := s.Comment(11)
	assert.False(t, ok, "replies in the post list are not stored as roots")
	assert.False(t, s.Loaded(10))
}

func TestExpandFetchesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		children, err := s.Expand(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{13, 11}, ids(children))
	}
	assert.Equal(t, 1, f.count("replies"))
}

func TestExpandUnknownParent(t *testing.T) {
	s := newTestSync(t, newFakeBackend())
	_, err := s.Expand(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUnknownComment)
}

func TestExpandFailureLeavesEntryAbsent(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)

	f.mu.Lock()
	f.failReplies[10] = true
	f.mu.Unlock()

	_, err = s.Expand(ctx, 10)
	require.ErrorIs(t, err, errDown)
	_, loaded := s.Children(10)
	assert.False(t, loaded)

	f.mu.Lock()
	f.failReplies[10] = false
	f.mu.Unlock()

	children, err := s.Expand(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, children, 2)
	assert.Equal(t, 2, f.count("replies"))
}

func TestExpandConcurrentCallersShareOneFetch(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)

	gate := make(chan struct{})
	entered := make(chan int64, 8)
	f.mu.Lock()
	f.repliesGate, f.repliesEntered = gate, entered
	f.mu.Unlock()

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]model.Comment, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Expand(ctx, 10)
		}(i)
	}

	<-entered
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, f.count("replies"))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []int64{13, 11}, ids(results[i]))
	}
}

func TestExpandCallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)
	_, err := s.LoadPost(context.Background(), 1)
	require.NoError(t, err)

	gate := make(chan struct{})
	entered := make(chan int64, 1)
	f.mu.Lock()
	f.repliesGate, f.repliesEntered = gate, entered
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Expand(ctx, 10)
		done <- err
	}()
	<-entered
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(gate)
	assert.Eventually(t, func() bool { return s.Loaded(10) }, time.Second, 5*time.Millisecond)
}

func TestExpandNormalizesAttachments(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.seed(model.Comment{ID: 10, ForumPostID: 1, Content: "C1", ImgPath: model.NoImage})
	f.seed(model.Comment{ID: 11, ForumPostID: 1, ParentCommentID: ptr(10), Content: "R1", ImgPath: "/uploads/cat.png"})
	f.seed(model.Comment{ID: 12, ForumPostID: 1, ParentCommentID: ptr(10), Content: "R2", ImgPath: "https://cdn.example.com/dog.png"})

	s := newTestSync(t, f, WithAttachmentResolver(func(ref string) string {
		return client.NormalizeAttachment("http://api.example.com", ref)
	}))
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)
	_, err = s.Expand(ctx, 10)
	require.NoError(t, err)

	c10, _ := s.Comment(10)
	c11, _ := s.Comment(11)
	c12, _ := s.Comment(12)
	assert.Empty(t, c10.ImgPath)
	assert.Equal(t, "http://api.example.com/uploads/cat.png", c11.ImgPath)
	assert.Equal(t, "https://cdn.example.com/dog.png", c12.ImgPath)
}

func TestTotalCountIsLowerBound(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 0, s.TotalCount(10))

	_, err = s.Expand(ctx, 10)
	require.NoError(t, err)
	children, _ := s.Children(10)
	assert.GreaterOrEqual(t, s.TotalCount(10), len(children))
	assert.Equal(t, 2, s.TotalCount(10))

	require.NoError(t, s.PrefetchPost(ctx, 1))
	assert.Equal(t, 3, s.TotalCount(10))
	assert.Equal(t, 1, s.TotalCount(20))
	assert.Equal(t, 6, s.PostCount(1))
}

func TestPrefetchSkipsFailedSubtrees(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	f.failReplies[11] = true
	s := newTestSync(t, f, WithPrefetchConcurrency(2))
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)

	s.Prefetch(ctx, 10)
	assert.True(t, s.Loaded(10))
	assert.True(t, s.Loaded(13))
	assert.False(t, s.Loaded(11))
	assert.Equal(t, 2, s.TotalCount(10))
}

func TestRefreshInFlightDoesNotRestoreDeletedChild(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)
	_, err = s.Expand(ctx, 10)
	require.NoError(t, err)

	gate := make(chan struct{})
	entered := make(chan int64, 1)
	f.mu.Lock()
	f.repliesGate, f.repliesEntered = gate, entered
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.Refresh(ctx, 10)
		done <- err
	}()
	<-entered

	// The in-flight response still lists 11.
	require.NoError(t, s.Delete(ctx, 11, AutoConfirm))
	close(gate)
	require.NoError(t, <-done)

	children, loaded := s.Children(10)
	require.True(t, loaded)
	assert.Equal(t, []int64{13}, ids(children))
	_, ok := s.Comment(11)
	assert.False(t, ok)
	assert.Equal(t, 1, s.TotalCount(10))
}

func TestExpandInFlightKeepsReplyCreatedMeanwhile(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)
	_, err = s.Expand(ctx, 10)
	require.NoError(t, err)

	gate := make(chan struct{})
	entered := make(chan int64, 1)
	f.mu.Lock()
	f.repliesGate, f.repliesEntered = gate, entered
	f.mu.Unlock()

	type result struct {
		children []model.Comment
		err      error
	}
	done := make(chan result, 1)
	go func() {
		children, err := s.Expand(ctx, 13)
		done <- result{children, err}
	}()
	<-entered

	created, err := s.AddComment(ctx, 1, ptr(13), "while loading", nil)
	require.NoError(t, err)
	close(gate)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []int64{created.ID}, ids(res.children))
	assert.Equal(t, 3, s.TotalCount(10))
}

func TestExpandKeepsReplyTheServerDoesNotListYet(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	f.lagCreates = true
	s := newTestSync(t, f)
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)
	_, err = s.Expand(ctx, 10)
	require.NoError(t, err)

	created, err := s.AddComment(ctx, 1, ptr(13), "not listed yet", nil)
	require.NoError(t, err)
	assert.False(t, s.Loaded(13))

	children, err := s.Expand(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, []int64{created.ID}, ids(children))
	assert.Equal(t, 1, f.count("replies:13"))
}

func TestPrefetchAndExpandShareOneFetch(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	seedTree(f)
	s := newTestSync(t, f)
	_, err := s.LoadPost(ctx, 1)
	require.NoError(t, err)

	gate := make(chan struct{})
	entered := make(chan int64, 16)
	f.mu.Lock()
	f.repliesGate, f.repliesEntered = gate, entered
	f.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Prefetch(ctx, 10)
	}()
	require.Equal(t, int64(10), <-entered)

	var children []model.Comment
	var expandErr error
	go func() {
		defer wg.Done()
		children, expandErr = s.Expand(ctx, 10)
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.NoError(t, expandErr)
	assert.Equal(t, []int64{13, 11}, ids(children))
	assert.Equal(t, 1, f.count("replies:10"))
	assert.Equal(t, 4, f.count("replies"), "one fetch each for 10, 11, 12 and 13")
	assert.Equal(t, 3, s.TotalCount(10))
}
