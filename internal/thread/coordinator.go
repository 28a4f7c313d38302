package thread

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"forumsync/internal/marker"
	"forumsync/internal/metrics"
	"forumsync/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Confirmer gates destructive actions.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AutoConfirm accepts every prompt. Used by non-interactive callers.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

func (s *Synchronizer) opLog(op string, id int64) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{"op": op, "comment_id": id})
}

func recordMutation(op string, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.Mutations.WithLabelValues(op, outcome).Inc()
}

// AddComment creates a root comment (parentID nil) or a reply. A Pending
// placeholder is visible while the call is in flight; the confirmed record is
// prepended to its bucket if that bucket is loaded. Nothing else changes on
// failure.
func (s *Synchronizer) AddComment(ctx context.Context, postID int64, parentID *int64, content string, image *model.Attachment) (model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, ErrEmptyContent
	}
	in := model.CommentInput{
		ForumPostID:     postID,
		Content:         content,
		UserEmail:       s.userEmail,
		ParentCommentID: parentID,
		Image:           image,
	}
	if err := s.validate.Struct(in); err != nil {
		return model.Comment{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var logID int64
	if parentID != nil {
		p := *parentID
		parentID = &p
		logID = p

		s.mu.RLock()
		parent, known := s.records[p]
		samePost := known && parent.ForumPostID == postID
		s.mu.RUnlock()
		if !known {
			return model.Comment{}, fmt.Errorf("%w: %d", ErrUnknownComment, p)
		}
		if !samePost {
			return model.Comment{}, fmt.Errorf("%w: parent %d is not on post %d", ErrInvalidInput, p, postID)
		}
	}
	log := s.opLog("add", logID).WithField("post_id", postID)

	key := uuid.NewString()
	s.mu.Lock()
	s.pending[key] = Pending{Key: key, PostID: postID, ParentID: parentID, Content: content, CreatedAt: time.Now()}
	s.mu.Unlock()
	s.notify(Change{Kind: ChangePending, PostID: postID, CommentID: logID})

	created, err := s.backend.CreateComment(ctx, in)
	if err == nil && created == nil {
		err = errors.New("empty create response")
	}
	recordMutation("add", err)
	if err != nil {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		s.notify(Change{Kind: ChangePending, PostID: postID, CommentID: logID})
		log.WithError(err).Warn("create comment failed")
		return model.Comment{}, fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}

	c := *created
	if c.ForumPostID == 0 {
		c.ForumPostID = postID
	}
	if c.ParentCommentID == nil && parentID != nil {
		p := *parentID
		c.ParentCommentID = &p
	}

	changes := []Change{{Kind: ChangePending, PostID: postID, CommentID: logID}}
	s.mu.Lock()
	delete(s.pending, key)
	delete(s.deleted, c.ID)
	rec := s.putLocked(c)
	if s.attachLocked(rec) {
		changes = append(changes, bucketChange(rec))
	}
	out := cloneComment(rec)
	s.mu.Unlock()
	s.notify(changes...)

	log.WithField("new_id", out.ID).Debug("comment created")
	return out, nil
}

// Edit replaces a comment's content. The comment keeps its id and parent. When
// the backend acknowledges without returning the record, the post roots and the
// comment's own bucket are re-fetched instead.
func (s *Synchronizer) Edit(ctx context.Context, id int64, content string) (model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, ErrEmptyContent
	}

	s.mu.RLock()
	rec, known := s.records[id]
	var cur model.Comment
	if known {
		cur = cloneComment(rec)
	}
	s.mu.RUnlock()
	if !known {
		return model.Comment{}, fmt.Errorf("%w: %d", ErrUnknownComment, id)
	}

	in := model.CommentInput{
		ForumPostID:     cur.ForumPostID,
		Content:         content,
		UserEmail:       s.userEmail,
		ParentCommentID: cur.ParentCommentID,
		ImgPath:         cur.ImgPath,
	}
	if err := s.validate.Struct(in); err != nil {
		return model.Comment{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	log := s.opLog("edit", id)

	updated, err := s.backend.UpdateComment(ctx, id, in)
	recordMutation("edit", err)
	if err != nil {
		log.WithError(err).Warn("update comment failed")
		return model.Comment{}, fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}

	if updated == nil {
		s.mu.Lock()
		if rec, ok := s.records[id]; ok {
			rec.Content = content
		}
		s.mu.Unlock()
		s.reloadAround(ctx, cur)
	} else {
		u := *updated
		u.ID = id
		s.mu.Lock()
		if _, ok := s.records[id]; ok {
			s.putLocked(u)
		}
		s.mu.Unlock()
	}
	s.notify(Change{Kind: ChangeComment, PostID: cur.ForumPostID, CommentID: id})

	out, ok := s.Comment(id)
	if !ok {
		// Removed concurrently; report what the backend accepted.
		cur.Content = content
		return cur, nil
	}
	return out, nil
}

// reloadAround re-fetches the buckets that can hold c. Failures are logged only;
// the local copy already carries the new content.
func (s *Synchronizer) reloadAround(ctx context.Context, c model.Comment) {
	log := s.opLog("edit", c.ID)
	if _, err := s.LoadPost(ctx, c.ForumPostID); err != nil {
		log.WithError(err).Debug("post reload after edit failed")
	}
	if c.ParentCommentID != nil && s.Loaded(*c.ParentCommentID) {
		if _, err := s.Refresh(ctx, *c.ParentCommentID); err != nil {
			log.WithError(err).Debug("bucket reload after edit failed")
		}
	}
}

// Delete removes a comment after confirm accepts. On success the comment and its
// loaded subtree are dropped; on failure nothing changes.
func (s *Synchronizer) Delete(ctx context.Context, id int64, confirm Confirmer) error {
	s.mu.RLock()
	rec, known := s.records[id]
	var postID int64
	if known {
		postID = rec.ForumPostID
	}
	s.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %d", ErrUnknownComment, id)
	}
	if confirm == nil {
		return ErrNotConfirmed
	}
	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Delete comment %d?", id))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConfirmed, err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	log := s.opLog("delete", id)

	err = s.backend.DeleteComment(ctx, id, s.userEmail)
	recordMutation("delete", err)
	if err != nil {
		log.WithError(err).Warn("delete comment failed")
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}

	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeRemoved, PostID: postID, CommentID: id})
	return nil
}

// LoadReaction fetches the reaction summary of a comment and stores it.
func (s *Synchronizer) LoadReaction(ctx context.Context, id int64) (ReactionState, error) {
	summary, err := s.backend.ReactionSummary(ctx, id, s.userEmail)
	if err != nil {
		return ReactionState{}, fmt.Errorf("reaction summary of %d: %w", id, err)
	}
	st := ReactionState{Liked: summary.Liked(), Count: summary.LikeCount, Dislikes: summary.DislikeCount}

	s.mu.Lock()
	_, known := s.records[id]
	if known {
		s.reactions[id] = st
	}
	s.mu.Unlock()
	if known {
		s.notify(Change{Kind: ChangeReaction, CommentID: id})
	}
	return st, nil
}

// ToggleLike flips the user's like on a comment immediately, then confirms with
// the backend. A failed call restores the exact previous state. A successful one
// is followed by a summary refresh that overwrites the local guess.
func (s *Synchronizer) ToggleLike(ctx context.Context, id int64) (ReactionState, error) {
	s.mu.RLock()
	rec, known := s.records[id]
	var likeCount int64
	if known {
		likeCount = rec.LikeCount
	}
	_, have := s.reactions[id]
	s.mu.RUnlock()
	if !known {
		return ReactionState{}, fmt.Errorf("%w: %d", ErrUnknownComment, id)
	}
	log := s.opLog("like", id)

	if !have {
		if _, err := s.LoadReaction(ctx, id); err != nil {
			log.WithError(err).Debug("no reaction summary, starting from record count")
			s.mu.Lock()
			if _, ok := s.reactions[id]; !ok {
				s.reactions[id] = ReactionState{Count: likeCount}
			}
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	prev := s.reactions[id]
	next := prev
	next.Liked = !prev.Liked
	if next.Liked {
		next.Count++
	} else if next.Count > 0 {
		next.Count--
	}
	s.reactions[id] = next
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeReaction, CommentID: id})

	var err error
	if next.Liked {
		err = s.backend.AddReaction(ctx, model.ReactionInput{
			TargetType:   model.TargetTypeComment,
			TargetID:     id,
			UserEmail:    s.userEmail,
			ReactionType: model.ReactionLike,
		})
	} else {
		err = s.backend.RemoveReaction(ctx, id, s.userEmail)
	}
	recordMutation("like", err)
	if err != nil {
		s.mu.Lock()
		if _, ok := s.records[id]; ok {
			s.reactions[id] = prev
		}
		s.mu.Unlock()
		metrics.ReactionRollbacks.Inc()
		s.notify(Change{Kind: ChangeReaction, CommentID: id})
		log.WithError(err).Warn("reaction toggle failed, reverted")
		return prev, fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}

	st, err := s.LoadReaction(ctx, id)
	if err != nil {
		log.WithError(err).Debug("summary refresh after toggle failed")
		return next, nil
	}
	return st, nil
}

// Report files a moderation report against a comment once per reporter. Repeats
// are answered from the local marker without a network call; a 400 from the
// backend means the report already exists and sets the marker as well.
func (s *Synchronizer) Report(ctx context.Context, id int64, reasons []string, description string) error {
	cleaned := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return ErrEmptyReason
	}
	in := model.ReportInput{
		TargetType:  model.TargetTypeComment,
		TargetID:    id,
		Reasons:     cleaned,
		Description: strings.TrimSpace(description),
	}
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	log := s.opLog("report", id)

	key := marker.ReportKey(model.TargetTypeComment, id, s.userEmail)
	done, err := s.markers.Has(ctx, key)
	if err != nil {
		log.WithError(err).Warn("marker lookup failed")
	}
	if done {
		return ErrAlreadyReported
	}

	err = s.backend.CreateReport(ctx, s.userEmail, in)
	var sc statusCoder
	if err != nil && errors.As(err, &sc) && sc.HTTPStatus() == http.StatusBadRequest {
		recordMutation("report", nil)
		s.mark(ctx, key, log)
		return ErrAlreadyReported
	}
	recordMutation("report", err)
	if err != nil {
		log.WithError(err).Warn("create report failed")
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}
	s.mark(ctx, key, log)
	return nil
}

func (s *Synchronizer) mark(ctx context.Context, key string, log logrus.FieldLogger) {
	if err := s.markers.Mark(ctx, key); err != nil {
		log.WithError(err).Warn("persist report marker failed")
	}
}
