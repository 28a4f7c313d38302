package thread

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"forumsync/internal/model"
)

var errDown = errors.New("backend down")

type httpErr int

func (e httpErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e httpErr) HTTPStatus() int { return int(e) }

// fakeBackend is an in-memory comment backend with call counters and failure
// switches.
type fakeBackend struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64]model.Comment
	likes    map[int64]map[string]bool
	reports  map[string]bool

	calls map[string]int

	failReplies    map[int64]bool
	lagging        map[int64]bool // created but not yet listed by Replies
	failCreate     bool
	failUpdate     bool
	failDelete     bool
	failReaction   bool
	failSummary    bool
	emptyUpdate    bool
	lagCreates     bool
	reportErr      error
	repliesGate    chan struct{} // when set, Replies blocks until closed
	repliesEntered chan int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID:      100,
		comments:    make(map[int64]model.Comment),
		likes:       make(map[int64]map[string]bool),
		reports:     make(map[string]bool),
		calls:       make(map[string]int),
		failReplies: make(map[int64]bool),
		lagging:     make(map[int64]bool),
	}
}

func (f *fakeBackend) seed(c model.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Unix(c.ID, 0)
	}
	if c.UserEmail == "" {
		c.UserEmail = "author@example.com"
	}
	f.comments[c.ID] = c
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) sorted(keep func(model.Comment) bool) []model.Comment {
	var out []model.Comment
	for _, c := range f.comments {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeBackend) PostComments(_ context.Context, postID int64) ([]model.Comment, error) {
	f.hit("post")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(c model.Comment) bool { return c.ForumPostID == postID }), nil
}

// Replies answers from a snapshot taken when the request arrives, so a gated
// call returns what the server held before anything done while it waited.
func (f *fakeBackend) Replies(ctx context.Context, commentID int64) ([]model.Comment, error) {
	f.hit("replies")
	f.hit(fmt.Sprintf("replies:%d", commentID))
	f.mu.Lock()
	gate, entered := f.repliesGate, f.repliesEntered
	fail := f.failReplies[commentID]
	snapshot := f.sorted(func(c model.Comment) bool {
		return c.ParentCommentID != nil && *c.ParentCommentID == commentID && !f.lagging[c.ID]
	})
	f.mu.Unlock()

	if entered != nil {
		entered <- commentID
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errDown
	}
	return snapshot, nil
}

func (f *fakeBackend) CreateComment(_ context.Context, in model.CommentInput) (*model.Comment, error) {
	f.hit("create")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, errDown
	}
	f.nextID++
	c := model.Comment{
		ID:              f.nextID,
		ForumPostID:     in.ForumPostID,
		ParentCommentID: in.ParentCommentID,
		Content:         in.Content,
		UserEmail:       in.UserEmail,
		ImgPath:         in.ImgPath,
		CreatedAt:       time.Unix(f.nextID, 0),
	}
	f.comments[c.ID] = c
	if f.lagCreates {
		f.lagging[c.ID] = true
	}
	return &c, nil
}

func (f *fakeBackend) UpdateComment(_ context.Context, id int64, in model.CommentInput) (*model.Comment, error) {
	f.hit("update")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return nil, errDown
	}
	c, ok := f.comments[id]
	if !ok {
		return nil, httpErr(404)
	}
	c.Content = in.Content
	c.UpdatedAt = time.Unix(1000, 0)
	f.comments[id] = c
	if f.emptyUpdate {
		return nil, nil
	}
	// Echo back a parent that disagrees with the stored one; callers must
	// never let it move the comment.
	bogus := int64(999)
	c.ParentCommentID = &bogus
	return &c, nil
}

func (f *fakeBackend) DeleteComment(_ context.Context, id int64, _ string) error {
	f.hit("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errDown
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeBackend) ReactionSummary(_ context.Context, commentID int64, userEmail string) (*model.ReactionSummary, error) {
	f.hit("summary")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSummary {
		return nil, errDown
	}
	s := &model.ReactionSummary{LikeCount: int64(len(f.likes[commentID]))}
	if f.likes[commentID][userEmail] {
		s.UserReaction = model.ReactionLike
	}
	return s, nil
}

func (f *fakeBackend) AddReaction(_ context.Context, in model.ReactionInput) error {
	f.hit("add_reaction")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReaction {
		return errDown
	}
	if f.likes[in.TargetID] == nil {
		f.likes[in.TargetID] = make(map[string]bool)
	}
	f.likes[in.TargetID][in.UserEmail] = true
	return nil
}

func (f *fakeBackend) RemoveReaction(_ context.Context, commentID int64, userEmail string) error {
	f.hit("remove_reaction")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReaction {
		return errDown
	}
	delete(f.likes[commentID], userEmail)
	return nil
}

func (f *fakeBackend) CreateReport(_ context.Context, userEmail string, in model.ReportInput) error {
	f.hit("report")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reportErr != nil {
		return f.reportErr
	}
	key := fmt.Sprintf("%s:%d:%s", in.TargetType, in.TargetID, userEmail)
	if f.reports[key] {
		return httpErr(400)
	}
	f.reports[key] = true
	return nil
}

func ptr(v int64) *int64 { return &v }
