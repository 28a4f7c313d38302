package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"forumsync/internal/model"

	"gorm.io/gorm"
)

// MemoryStore keeps comments, reactions and reports in process memory. It backs
// STORE_DRIVER=memory and the tests. Lookups that miss return
// gorm.ErrRecordNotFound so services treat both drivers alike.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	comments  map[int64]*model.Comment
	reactions map[reactionKey]*model.Reaction
	reports   map[reportKey]*model.Report
	now       func() time.Time
}

type reactionKey struct {
	user       string
	targetType string
	targetID   int64
}

type reportKey struct {
	targetType string
	targetID   int64
	reporter   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		comments:  make(map[int64]*model.Comment),
		reactions: make(map[reactionKey]*model.Reaction),
		reports:   make(map[reportKey]*model.Report),
		now:       time.Now,
	}
}

func (m *MemoryStore) Comments() CommentRepository   { return memoryComments{m} }
func (m *MemoryStore) Reactions() ReactionRepository { return memoryReactions{m} }
func (m *MemoryStore) Reports() ReportRepository     { return memoryReports{m} }

// tickLocked allocates the next id and returns an increasing timestamp so
// newest-first ordering holds even within the clock's resolution.
func (m *MemoryStore) tickLocked() time.Time {
	m.nextID++
	return m.now().Add(time.Duration(m.nextID) * time.Nanosecond)
}

func (m *MemoryStore) likeCountLocked(id int64) int64 {
	var n int64
	for k, r := range m.reactions {
		if k.targetType == model.TargetTypeComment && k.targetID == id && r.Reaction == model.ReactionLike {
			n++
		}
	}
	return n
}

func (m *MemoryStore) copyLocked(c *model.Comment) *model.Comment {
	out := *c
	if c.ParentCommentID != nil {
		p := *c.ParentCommentID
		out.ParentCommentID = &p
	}
	out.LikeCount = m.likeCountLocked(c.ID)
	return &out
}

func (m *MemoryStore) listLocked(keep func(*model.Comment) bool) []*model.Comment {
	var out []*model.Comment
	for _, c := range m.comments {
		if keep(c) {
			out = append(out, m.copyLocked(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

type memoryComments struct{ m *MemoryStore }

func (r memoryComments) Create(_ context.Context, comment *model.Comment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ts := r.m.tickLocked()
	comment.ID = r.m.nextID
	comment.CreatedAt = ts
	comment.UpdatedAt = ts
	stored := *comment
	r.m.comments[comment.ID] = &stored
	return nil
}

func (r memoryComments) FindByID(_ context.Context, id int64) (*model.Comment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c, ok := r.m.comments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.m.copyLocked(c), nil
}

func (r memoryComments) FindByPostID(_ context.Context, postID int64) ([]*model.Comment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.m.listLocked(func(c *model.Comment) bool { return c.ForumPostID == postID }), nil
}

func (r memoryComments) FindByParentID(_ context.Context, parentID int64) ([]*model.Comment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.m.listLocked(func(c *model.Comment) bool {
		return c.ParentCommentID != nil && *c.ParentCommentID == parentID
	}), nil
}

func (r memoryComments) Update(_ context.Context, comment *model.Comment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.comments[comment.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Content = comment.Content
	c.ImgPath = comment.ImgPath
	c.UpdatedAt = r.m.now()
	comment.UpdatedAt = c.UpdatedAt
	return nil
}

func (r memoryComments) Delete(_ context.Context, id int64) ([]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.comments[id]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	removed := []int64{id}
	for i := 0; i < len(removed); i++ {
		for cid, c := range r.m.comments {
			if c.ParentCommentID != nil && *c.ParentCommentID == removed[i] {
				removed = append(removed, cid)
			}
		}
	}
	for _, rid := range removed {
		delete(r.m.comments, rid)
	}
	return removed, nil
}

func (memoryComments) InvalidateLikeCounts(context.Context, int64) {}

type memoryReactions struct{ m *MemoryStore }

func (r memoryReactions) Upsert(_ context.Context, reaction *model.Reaction) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := reactionKey{reaction.UserEmail, reaction.TargetType, reaction.TargetID}
	if existing, ok := r.m.reactions[key]; ok {
		existing.Reaction = reaction.Reaction
		*reaction = *existing
		return nil
	}
	reaction.ID = int64(len(r.m.reactions) + 1)
	reaction.CreatedAt = r.m.now()
	stored := *reaction
	r.m.reactions[key] = &stored
	return nil
}

func (r memoryReactions) FindByUserAndTarget(_ context.Context, userEmail, targetType string, targetID int64) (*model.Reaction, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	reaction, ok := r.m.reactions[reactionKey{userEmail, targetType, targetID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *reaction
	return &out, nil
}

func (r memoryReactions) DeleteByUserAndTarget(_ context.Context, userEmail, targetType string, targetID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := reactionKey{userEmail, targetType, targetID}
	if _, ok := r.m.reactions[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.m.reactions, key)
	return nil
}

func (r memoryReactions) CountByTarget(_ context.Context, targetType string, targetID int64, reaction string) (int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var n int64
	for k, v := range r.m.reactions {
		if k.targetType == targetType && k.targetID == targetID && v.Reaction == reaction {
			n++
		}
	}
	return n, nil
}

type memoryReports struct{ m *MemoryStore }

func (r memoryReports) Create(_ context.Context, report *model.Report) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := reportKey{report.TargetType, report.TargetID, report.Reporter}
	if _, ok := r.m.reports[key]; ok {
		return ErrDuplicate
	}
	report.ID = int64(len(r.m.reports) + 1)
	report.CreatedAt = r.m.now()
	stored := *report
	r.m.reports[key] = &stored
	return nil
}

func (r memoryReports) Exists(_ context.Context, targetType string, targetID int64, reporter string) (bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	_, ok := r.m.reports[reportKey{targetType, targetID, reporter}]
	return ok, nil
}
