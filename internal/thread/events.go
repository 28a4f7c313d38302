package thread

import "forumsync/internal/model"

// ChangeKind names what part of the local state changed.
type ChangeKind string

const (
	ChangeRoots    ChangeKind = "roots"    // a post's root bucket changed
	ChangeChildren ChangeKind = "children" // a comment's reply bucket changed
	ChangeComment  ChangeKind = "comment"  // a record's content changed
	ChangeRemoved  ChangeKind = "removed"  // a comment and its subtree were dropped
	ChangeReaction ChangeKind = "reaction" // a reaction state changed
	ChangePending  ChangeKind = "pending"  // a pending create appeared or resolved
)

// Change is delivered to subscribers after the state it describes is visible.
type Change struct {
	Kind      ChangeKind
	PostID    int64
	CommentID int64
}

// Subscribe registers fn to be called after every state change. Calls happen on
// the goroutine that made the change, outside the synchronizer's lock.
func (s *Synchronizer) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Synchronizer) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.listenersMu.RLock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	for _, ch := range changes {
		for _, fn := range fns {
			fn(ch)
		}
	}
}

// bucketChange describes an attach to rec's bucket.
func bucketChange(rec *model.Comment) Change {
	if rec.ParentCommentID == nil {
		return Change{Kind: ChangeRoots, PostID: rec.ForumPostID}
	}
	return Change{Kind: ChangeChildren, PostID: rec.ForumPostID, CommentID: *rec.ParentCommentID}
}

// ApplyEvent folds a backend feed event into local state using the same rules as
// local mutations. Events for ids already in the requested state are no-ops.
func (s *Synchronizer) ApplyEvent(ev model.CommentEvent) {
	if ev.Comment == nil {
		return
	}
	c := *ev.Comment
	if c.ForumPostID == 0 {
		c.ForumPostID = ev.PostID
	}

	var changes []Change
	s.mu.Lock()
	switch ev.Type {
	case model.EventCommentCreated:
		if _, gone := s.deleted[c.ID]; gone {
			break
		}
		_, known := s.records[c.ID]
		rec := s.putLocked(c)
		if !known {
			if s.attachLocked(rec) {
				changes = append(changes, bucketChange(rec))
			}
		} else {
			changes = append(changes, Change{Kind: ChangeComment, PostID: rec.ForumPostID, CommentID: rec.ID})
		}

	case model.EventCommentUpdated:
		if _, known := s.records[c.ID]; known {
			rec := s.putLocked(c)
			changes = append(changes, Change{Kind: ChangeComment, PostID: rec.ForumPostID, CommentID: rec.ID})
		}

	case model.EventCommentDeleted:
		if _, known := s.records[c.ID]; known {
			s.removeLocked(c.ID)
			changes = append(changes, Change{Kind: ChangeRemoved, PostID: c.ForumPostID, CommentID: c.ID})
		} else {
			s.deleted[c.ID] = struct{}{}
		}
	}
	s.mu.Unlock()

	s.notify(changes...)
}
