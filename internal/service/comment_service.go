package service

import (
	"context"
	"errors"
	"strings"

	"forumsync/internal/model"
	"forumsync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventPublisher fans comment changes out to live subscribers of a post.
type EventPublisher interface {
	PublishCommentEvent(ev model.CommentEvent)
}

type CommentService interface {
	CreateComment(ctx context.Context, in model.CommentInput) (*model.Comment, error)
	GetCommentsByPostID(ctx context.Context, postID int64) ([]*model.Comment, error)
	GetReplies(ctx context.Context, commentID int64) ([]*model.Comment, error)
	UpdateComment(ctx context.Context, commentID int64, in model.CommentInput) (*model.Comment, error)
	DeleteComment(ctx context.Context, commentID int64, userEmail string) error
}

type commentService struct {
	commentRepo repository.CommentRepository
	events      EventPublisher
	log         logrus.FieldLogger
}

// NewCommentService wires the comment rules. events may be nil.
func NewCommentService(commentRepo repository.CommentRepository, events EventPublisher, log logrus.FieldLogger) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		events:      events,
		log:         log,
	}
}

// CreateComment creates a root comment or a reply
func (s *commentService) CreateComment(ctx context.Context, in model.CommentInput) (*model.Comment, error) {
	// If parentCommentId is provided, validate parent comment exists and belongs to same post
	if in.ParentCommentID != nil {
		parent, err := s.commentRepo.FindByID(ctx, *in.ParentCommentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
		if parent.ForumPostID != in.ForumPostID {
			return nil, ErrParentMismatch
		}
	}

	imgPath := in.ImgPath
	if imgPath == "" {
		imgPath = model.NoImage
	}
	comment := &model.Comment{
		ForumPostID:     in.ForumPostID,
		ParentCommentID: in.ParentCommentID,
		Content:         strings.TrimSpace(in.Content),
		UserEmail:       in.UserEmail,
		Username:        usernameFromEmail(in.UserEmail),
		ImgPath:         imgPath,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.publish(model.EventCommentCreated, comment)
	s.log.WithFields(logrus.Fields{"comment_id": comment.ID, "post_id": comment.ForumPostID}).Debug("comment created")
	return comment, nil
}

// GetCommentsByPostID returns every comment of a post, newest first
func (s *commentService) GetCommentsByPostID(ctx context.Context, postID int64) ([]*model.Comment, error) {
	return s.commentRepo.FindByPostID(ctx, postID)
}

// GetReplies returns the direct replies to a comment
func (s *commentService) GetReplies(ctx context.Context, commentID int64) ([]*model.Comment, error) {
	if _, err := s.commentRepo.FindByID(ctx, commentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return s.commentRepo.FindByParentID(ctx, commentID)
}

// UpdateComment changes the content of a comment. Post, parent and attachment
// are fixed at creation and never change.
func (s *commentService) UpdateComment(ctx context.Context, commentID int64, in model.CommentInput) (*model.Comment, error) {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}

	// Check if user owns this comment
	if comment.UserEmail != in.UserEmail {
		return nil, ErrForbidden
	}

	comment.Content = strings.TrimSpace(in.Content)
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}

	s.publish(model.EventCommentUpdated, comment)
	return comment, nil
}

// DeleteComment deletes a comment and its replies
func (s *commentService) DeleteComment(ctx context.Context, commentID int64, userEmail string) error {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}

	// Check if user owns this comment
	if comment.UserEmail != userEmail {
		return ErrForbidden
	}

	removed, err := s.commentRepo.Delete(ctx, commentID)
	if err != nil {
		return err
	}

	s.publish(model.EventCommentDeleted, &model.Comment{
		ID:              comment.ID,
		ForumPostID:     comment.ForumPostID,
		ParentCommentID: comment.ParentCommentID,
	})
	s.log.WithFields(logrus.Fields{"comment_id": commentID, "removed": len(removed)}).Debug("comment deleted")
	return nil
}

func (s *commentService) publish(eventType string, c *model.Comment) {
	if s.events == nil {
		return
	}
	snapshot := *c
	s.events.PublishCommentEvent(model.CommentEvent{Type: eventType, PostID: c.ForumPostID, Comment: &snapshot})
}

func usernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
