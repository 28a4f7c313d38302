// Package thread keeps a local, lazily loaded mirror of a post's comment tree in
// sync with the flat comment backend.
//
// Comments live in a single record store keyed by id. Parent/child structure is
// an adjacency list: roots per post and children per parent comment (the reply
// index). A children entry exists only once that parent's replies have been
// fetched; absence means "not fetched yet", never "no replies".
//
// The Synchronizer is safe for concurrent use. It does not serialize conflicting
// mutations on the same comment; callers are expected to avoid issuing them.
package thread

import (
	"context"
	"sort"
	"sync"
	"time"

	"forumsync/internal/marker"
	"forumsync/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const defaultPrefetchConcurrency = 4

// CommentStore is the remote flat comment resource.
type CommentStore interface {
	PostComments(ctx context.Context, postID int64) ([]model.Comment, error)
	Replies(ctx context.Context, commentID int64) ([]model.Comment, error)
	CreateComment(ctx context.Context, in model.CommentInput) (*model.Comment, error)
	UpdateComment(ctx context.Context, id int64, in model.CommentInput) (*model.Comment, error)
	DeleteComment(ctx context.Context, id int64, userEmail string) error
}

// ReactionLedger is the remote per-comment reaction tally.
type ReactionLedger interface {
	ReactionSummary(ctx context.Context, commentID int64, userEmail string) (*model.ReactionSummary, error)
	AddReaction(ctx context.Context, in model.ReactionInput) error
	RemoveReaction(ctx context.Context, commentID int64, userEmail string) error
}

// ReportSink accepts moderation reports.
type ReportSink interface {
	CreateReport(ctx context.Context, userEmail string, in model.ReportInput) error
}

// Backend is everything the synchronizer talks to. *client.Client implements it.
type Backend interface {
	CommentStore
	ReactionLedger
	ReportSink
}

// ReactionState is the current user's view of a comment's reactions.
type ReactionState struct {
	Liked    bool
	Count    int64
	Dislikes int64
}

// Pending is a comment whose create call has not resolved yet.
type Pending struct {
	Key       string
	PostID    int64
	ParentID  *int64
	Content   string
	CreatedAt time.Time
}

type Option func(*Synchronizer)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// WithMarkers sets the report marker store. Defaults to an in-memory store.
func WithMarkers(m marker.Store) Option {
	return func(s *Synchronizer) { s.markers = m }
}

// WithAttachmentResolver sets how attachment references are made absolute.
func WithAttachmentResolver(fn func(string) string) Option {
	return func(s *Synchronizer) { s.resolve = fn }
}

// WithPrefetchConcurrency bounds the number of reply fetches a prefetch walk
// keeps in flight.
func WithPrefetchConcurrency(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.prefetchConcurrency = n
		}
	}
}

// Synchronizer mirrors comment trees for one user.
type Synchronizer struct {
	backend             Backend
	userEmail           string
	markers             marker.Store
	resolve             func(string) string
	log                 logrus.FieldLogger
	validate            *validator.Validate
	prefetchConcurrency int

	flight singleflight.Group

	mu        sync.RWMutex
	records   map[int64]*model.Comment
	roots     map[int64][]int64 // post id -> root comment ids
	children  map[int64][]int64 // parent comment id -> reply ids
	reactions map[int64]ReactionState
	pending   map[string]Pending
	deleted   map[int64]struct{}

	// Ids confirmed by create calls or feed events since the owning bucket was
	// last fetched; merged into fetch results that raced with them.
	localRoots   map[int64]map[int64]struct{}
	localReplies map[int64]map[int64]struct{}

	listenersMu sync.RWMutex
	listeners   map[int]func(Change)
	nextListen  int
}

// New creates a Synchronizer acting as userEmail against backend.
func New(backend Backend, userEmail string, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend:             backend,
		userEmail:           userEmail,
		markers:             marker.NewMemory(),
		resolve:             func(ref string) string { return ref },
		log:                 logrus.StandardLogger(),
		validate:            validator.New(),
		prefetchConcurrency: defaultPrefetchConcurrency,
		records:             make(map[int64]*model.Comment),
		roots:               make(map[int64][]int64),
		children:            make(map[int64][]int64),
		reactions:           make(map[int64]ReactionState),
		pending:             make(map[string]Pending),
		deleted:             make(map[int64]struct{}),
		localRoots:          make(map[int64]map[int64]struct{}),
		localReplies:        make(map[int64]map[int64]struct{}),
		listeners:           make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Comment returns a loaded comment.
func (s *Synchronizer) Comment(id int64) (model.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return model.Comment{}, false
	}
	return cloneComment(rec), true
}

// Roots returns the loaded root comments of a post and whether they were loaded.
func (s *Synchronizer) Roots(postID int64) ([]model.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.roots[postID]
	if !ok {
		return nil, false
	}
	return s.collectLocked(ids), true
}

// Children returns the loaded direct replies of a comment without any network
// I/O. The boolean is false when the replies have not been fetched.
func (s *Synchronizer) Children(parentID int64) ([]model.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.children[parentID]
	if !ok {
		return nil, false
	}
	return s.collectLocked(ids), true
}

// Loaded reports whether a comment's replies have been fetched.
func (s *Synchronizer) Loaded(parentID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.children[parentID]
	return ok
}

// Reaction returns the current reaction state of a comment.
func (s *Synchronizer) Reaction(id int64) (ReactionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.reactions[id]
	return st, ok
}

// Pending returns the unresolved creates under a post (parentID nil) or a
// comment, oldest first.
func (s *Synchronizer) Pending(postID int64, parentID *int64) []Pending {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Pending
	for _, p := range s.pending {
		if p.PostID != postID || !sameParent(p.ParentID, parentID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Synchronizer) collectLocked(ids []int64) []model.Comment {
	out := make([]model.Comment, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out = append(out, cloneComment(rec))
		}
	}
	return out
}

// putLocked stores or reconciles a server record. An existing record keeps its
// id, post, parent and creation time; only mutable fields are overwritten.
func (s *Synchronizer) putLocked(c model.Comment) *model.Comment {
	c.ImgPath = s.resolve(c.ImgPath)
	c.UserAvatar = s.resolve(c.UserAvatar)

	existing, ok := s.records[c.ID]
	if !ok {
		rec := cloneComment(&c)
		s.records[c.ID] = &rec
		return &rec
	}

	existing.Content = c.Content
	existing.ImgPath = c.ImgPath
	existing.LikeCount = c.LikeCount
	if !c.UpdatedAt.IsZero() {
		existing.UpdatedAt = c.UpdatedAt
	}
	if c.Username != "" {
		existing.Username = c.Username
	}
	if c.UserAvatar != "" {
		existing.UserAvatar = c.UserAvatar
	}
	if c.UserEmail != "" {
		existing.UserEmail = c.UserEmail
	}
	if existing.ForumPostID == 0 {
		existing.ForumPostID = c.ForumPostID
	}
	if existing.ParentCommentID == nil && c.ParentCommentID != nil {
		p := *c.ParentCommentID
		existing.ParentCommentID = &p
	}
	return existing
}

// attachLocked links a confirmed comment into its bucket if that bucket is loaded,
// and remembers it for merging into racing fetches. It reports whether a loaded
// bucket changed.
func (s *Synchronizer) attachLocked(rec *model.Comment) bool {
	if rec.ParentCommentID == nil {
		addLocal(s.localRoots, rec.ForumPostID, rec.ID)
		ids, ok := s.roots[rec.ForumPostID]
		if !ok || containsID(ids, rec.ID) {
			return false
		}
		s.roots[rec.ForumPostID] = prependID(ids, rec.ID)
		return true
	}

	parent := *rec.ParentCommentID
	addLocal(s.localReplies, parent, rec.ID)
	ids, ok := s.children[parent]
	if !ok || containsID(ids, rec.ID) {
		return false
	}
	s.children[parent] = prependID(ids, rec.ID)
	return true
}

// removeLocked detaches a comment from its bucket and drops it together with its
// loaded subtree. Every dropped id is tombstoned.
func (s *Synchronizer) removeLocked(id int64) {
	rec, ok := s.records[id]
	if ok {
		if rec.ParentCommentID == nil {
			if ids, loaded := s.roots[rec.ForumPostID]; loaded {
				s.roots[rec.ForumPostID] = removeID(ids, id)
			}
			delete(s.localRoots[rec.ForumPostID], id)
		} else {
			parent := *rec.ParentCommentID
			if ids, loaded := s.children[parent]; loaded {
				s.children[parent] = removeID(ids, id)
			}
			delete(s.localReplies[parent], id)
		}
	}
	s.dropSubtreeLocked(id)
}

func (s *Synchronizer) dropSubtreeLocked(id int64) {
	for _, child := range s.children[id] {
		s.dropSubtreeLocked(child)
	}
	delete(s.children, id)
	delete(s.localReplies, id)
	delete(s.records, id)
	delete(s.reactions, id)
	s.deleted[id] = struct{}{}
}

// mergeFetched builds a bucket from a fetch result: tombstoned ids are skipped and
// locally confirmed ids missing from the result are kept in front.
func (s *Synchronizer) mergeFetched(fetched []model.Comment, local map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(fetched)+len(local))
	seen := make(map[int64]struct{}, len(fetched))

	var extra []*model.Comment
	for _, c := range fetched {
		seen[c.ID] = struct{}{}
	}
	for id := range local {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, gone := s.deleted[id]; gone {
			continue
		}
		if rec, ok := s.records[id]; ok {
			extra = append(extra, rec)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].CreatedAt.After(extra[j].CreatedAt) })
	for _, rec := range extra {
		ids = append(ids, rec.ID)
	}

	for _, c := range fetched {
		if _, gone := s.deleted[c.ID]; gone {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}

func cloneComment(c *model.Comment) model.Comment {
	out := *c
	if c.ParentCommentID != nil {
		p := *c.ParentCommentID
		out.ParentCommentID = &p
	}
	return out
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// prependID returns a new slice; buckets handed out earlier are never mutated.
func prependID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids)+1)
	out = append(out, id)
	return append(out, ids...)
}

func removeID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func addLocal(m map[int64]map[int64]struct{}, key, id int64) {
	set, ok := m[key]
	if !ok {
		set = make(map[int64]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}
