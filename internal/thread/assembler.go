package thread

import (
	"context"
	"fmt"
	"strconv"

	"forumsync/internal/metrics"
	"forumsync/internal/model"

	"golang.org/x/sync/errgroup"
)

// LoadPost fetches a post's comment list and replaces its root bucket. The
// backend may return replies alongside roots; only comments without a parent
// are kept.
func (s *Synchronizer) LoadPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	if err := s.flightWait(ctx, "post:"+strconv.FormatInt(postID, 10), func(fctx context.Context) error {
		return s.fetchRoots(fctx, postID)
	}); err != nil {
		return nil, err
	}
	roots, _ := s.Roots(postID)
	return roots, nil
}

func (s *Synchronizer) fetchRoots(ctx context.Context, postID int64) error {
	comments, err := s.backend.PostComments(ctx, postID)
	if err != nil {
		s.log.WithField("post_id", postID).WithError(err).Warn("load post comments failed")
		return fmt.Errorf("load post %d: %w", postID, err)
	}

	roots := make([]model.Comment, 0, len(comments))
	for _, c := range comments {
		if !c.IsRoot() {
			continue
		}
		if c.ForumPostID == 0 {
			c.ForumPostID = postID
		}
		roots = append(roots, c)
	}

	s.mu.Lock()
	for _, c := range roots {
		if _, gone := s.deleted[c.ID]; gone {
			continue
		}
		s.putLocked(c)
	}
	s.roots[postID] = s.mergeFetched(roots, s.localRoots[postID])
	delete(s.localRoots, postID)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRoots, PostID: postID})
	return nil
}

// Expand returns the direct replies of a loaded comment, fetching them on first
// use. A loaded bucket is returned without any network I/O, and concurrent
// expansions of the same comment share one request. A failed fetch leaves the
// bucket absent so a later call retries.
func (s *Synchronizer) Expand(ctx context.Context, parentID int64) ([]model.Comment, error) {
	s.mu.RLock()
	_, known := s.records[parentID]
	_, loaded := s.children[parentID]
	s.mu.RUnlock()

	if !known {
		return nil, fmt.Errorf("%w: %d", ErrUnknownComment, parentID)
	}
	if loaded {
		metrics.ReplyFetches.WithLabelValues(metrics.OutcomeCached).Inc()
		children, _ := s.Children(parentID)
		return children, nil
	}

	if err := s.flightWait(ctx, "replies:"+strconv.FormatInt(parentID, 10), func(fctx context.Context) error {
		if s.Loaded(parentID) {
			return nil
		}
		return s.fetchReplies(fctx, parentID)
	}); err != nil {
		return nil, err
	}
	children, _ := s.Children(parentID)
	return children, nil
}

// Refresh re-fetches a comment's replies even if they are loaded.
func (s *Synchronizer) Refresh(ctx context.Context, parentID int64) ([]model.Comment, error) {
	s.mu.RLock()
	_, known := s.records[parentID]
	s.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("%w: %d", ErrUnknownComment, parentID)
	}

	if err := s.flightWait(ctx, "refresh:"+strconv.FormatInt(parentID, 10), func(fctx context.Context) error {
		return s.fetchReplies(fctx, parentID)
	}); err != nil {
		return nil, err
	}
	children, _ := s.Children(parentID)
	return children, nil
}

func (s *Synchronizer) fetchReplies(ctx context.Context, parentID int64) error {
	replies, err := s.backend.Replies(ctx, parentID)
	if err != nil {
		metrics.ReplyFetches.WithLabelValues(metrics.OutcomeError).Inc()
		s.log.WithField("comment_id", parentID).WithError(err).Debug("fetch replies failed")
		return fmt.Errorf("fetch replies of %d: %w", parentID, err)
	}
	metrics.ReplyFetches.WithLabelValues(metrics.OutcomeOK).Inc()

	s.mu.Lock()
	parent, ok := s.records[parentID]
	if !ok {
		// Parent was deleted while the fetch was in flight.
		s.mu.Unlock()
		return nil
	}
	postID := parent.ForumPostID
	for i := range replies {
		c := replies[i]
		if _, gone := s.deleted[c.ID]; gone {
			continue
		}
		if c.ParentCommentID == nil {
			p := parentID
			c.ParentCommentID = &p
		}
		if c.ForumPostID == 0 {
			c.ForumPostID = postID
		}
		s.putLocked(c)
	}
	s.children[parentID] = s.mergeFetched(replies, s.localReplies[parentID])
	delete(s.localReplies, parentID)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeChildren, PostID: postID, CommentID: parentID})
	return nil
}

// flightWait runs fn once per key across concurrent callers. The shared call is
// detached from any single caller's cancellation; each caller stops waiting when
// its own ctx ends.
func (s *Synchronizer) flightWait(ctx context.Context, key string, fn func(context.Context) error) error {
	fctx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		return nil, fn(fctx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			metrics.FetchesShared.Inc()
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Prefetch walks the subtree under rootID breadth first, expanding every comment
// it reaches. It is best effort: failures are logged and the walk continues with
// whatever loaded. Fetches are shared with concurrent Expand calls.
func (s *Synchronizer) Prefetch(ctx context.Context, rootID int64) {
	s.prefetchFrom(ctx, []int64{rootID})
}

// PrefetchPost loads a post's roots if needed and prefetches every root subtree.
func (s *Synchronizer) PrefetchPost(ctx context.Context, postID int64) error {
	roots, ok := s.Roots(postID)
	if !ok {
		var err error
		if roots, err = s.LoadPost(ctx, postID); err != nil {
			return err
		}
	}
	level := make([]int64, 0, len(roots))
	for _, r := range roots {
		level = append(level, r.ID)
	}
	s.prefetchFrom(ctx, level)
	return nil
}

func (s *Synchronizer) prefetchFrom(ctx context.Context, level []int64) {
	for len(level) > 0 && ctx.Err() == nil {
		results := make([][]model.Comment, len(level))

		var g errgroup.Group
		g.SetLimit(s.prefetchConcurrency)
		for i, id := range level {
			i, id := i, id
			g.Go(func() error {
				children, err := s.Expand(ctx, id)
				if err != nil {
					s.log.WithField("comment_id", id).WithError(err).Debug("prefetch skipped subtree")
					return nil
				}
				results[i] = children
				return nil
			})
		}
		g.Wait()

		var next []int64
		for _, children := range results {
			for _, c := range children {
				next = append(next, c.ID)
			}
		}
		level = next
	}
}
