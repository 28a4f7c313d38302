package service

import (
	"context"
	"errors"

	"forumsync/internal/model"
	"forumsync/internal/repository"

	"gorm.io/gorm"
)

type ReactionService interface {
	AddReaction(ctx context.Context, in model.ReactionInput) (*model.Reaction, error)
	RemoveReaction(ctx context.Context, targetType string, targetID int64, userEmail string) error
	GetSummary(ctx context.Context, targetType string, targetID int64, userEmail string) (*model.ReactionSummary, error)
}

type reactionService struct {
	reactionRepo repository.ReactionRepository
	commentRepo  repository.CommentRepository
}

func NewReactionService(reactionRepo repository.ReactionRepository, commentRepo repository.CommentRepository) ReactionService {
	return &reactionService{
		reactionRepo: reactionRepo,
		commentRepo:  commentRepo,
	}
}

// AddReaction sets the user's reaction on a target. A second reaction by the same
// user replaces the first.
func (s *reactionService) AddReaction(ctx context.Context, in model.ReactionInput) (*model.Reaction, error) {
	if in.ReactionType == "" {
		in.ReactionType = model.ReactionLike
	}
	if !isValidReaction(in.ReactionType) {
		return nil, ErrInvalidReaction
	}
	if err := s.checkTarget(ctx, in.TargetType, in.TargetID); err != nil {
		return nil, err
	}

	reaction := &model.Reaction{
		UserEmail:  in.UserEmail,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Reaction:   in.ReactionType,
	}
	if err := s.reactionRepo.Upsert(ctx, reaction); err != nil {
		return nil, err
	}
	s.touch(ctx, in.TargetType, in.TargetID)
	return reaction, nil
}

// RemoveReaction clears the user's reaction. Removing a reaction that does not
// exist succeeds so repeated toggles stay idempotent.
func (s *reactionService) RemoveReaction(ctx context.Context, targetType string, targetID int64, userEmail string) error {
	err := s.reactionRepo.DeleteByUserAndTarget(ctx, userEmail, targetType, targetID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	s.touch(ctx, targetType, targetID)
	return nil
}

// GetSummary returns like and dislike counts plus the user's own reaction
func (s *reactionService) GetSummary(ctx context.Context, targetType string, targetID int64, userEmail string) (*model.ReactionSummary, error) {
	likes, err := s.reactionRepo.CountByTarget(ctx, targetType, targetID, model.ReactionLike)
	if err != nil {
		return nil, err
	}
	dislikes, err := s.reactionRepo.CountByTarget(ctx, targetType, targetID, model.ReactionDislike)
	if err != nil {
		return nil, err
	}

	summary := &model.ReactionSummary{LikeCount: likes, DislikeCount: dislikes}
	if userEmail != "" {
		if own, err := s.reactionRepo.FindByUserAndTarget(ctx, userEmail, targetType, targetID); err == nil {
			summary.UserReaction = own.Reaction
		}
	}
	return summary, nil
}

func (s *reactionService) checkTarget(ctx context.Context, targetType string, targetID int64) error {
	if targetType != model.TargetTypeComment {
		return nil
	}
	if _, err := s.commentRepo.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}
	return nil
}

// touch drops comment caches that embed like counts
func (s *reactionService) touch(ctx context.Context, targetType string, targetID int64) {
	if targetType == model.TargetTypeComment {
		s.commentRepo.InvalidateLikeCounts(ctx, targetID)
	}
}

func isValidReaction(reaction string) bool {
	return reaction == model.ReactionLike || reaction == model.ReactionDislike
}
