package repository

import (
	"context"
	"fmt"
	"time"

	"forumsync/internal/model"
	"forumsync/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReactionRepository interface {
	// Upsert sets the user's reaction on a target, replacing any earlier one.
	Upsert(ctx context.Context, reaction *model.Reaction) error
	FindByUserAndTarget(ctx context.Context, userEmail, targetType string, targetID int64) (*model.Reaction, error)
	DeleteByUserAndTarget(ctx context.Context, userEmail, targetType string, targetID int64) error
	CountByTarget(ctx context.Context, targetType string, targetID int64, reaction string) (int64, error)
}

type reactionRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	reactionCountCachePrefix = "reaction:count:"
	reactionCacheExpiration  = 10 * time.Minute
)

func NewReactionRepository(db *gorm.DB, redis *util.RedisClient) ReactionRepository {
	return &reactionRepository{
		db:    db,
		redis: redis,
	}
}

// Upsert inserts or updates on the (user, target) unique index and invalidates counts
func (r *reactionRepository) Upsert(ctx context.Context, reaction *model.Reaction) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_email"}, {Name: "target_type"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reaction"}),
	}).Create(reaction).Error
	if err != nil {
		return err
	}
	r.invalidateCountCache(ctx, reaction.TargetType, reaction.TargetID)
	return nil
}

// FindByUserAndTarget finds the user's reaction on a target
func (r *reactionRepository) FindByUserAndTarget(ctx context.Context, userEmail, targetType string, targetID int64) (*model.Reaction, error) {
	var reaction model.Reaction
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND target_type = ? AND target_id = ?", userEmail, targetType, targetID).
		First(&reaction).Error
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

// DeleteByUserAndTarget removes the user's reaction (unlike)
func (r *reactionRepository) DeleteByUserAndTarget(ctx context.Context, userEmail, targetType string, targetID int64) error {
	res := r.db.WithContext(ctx).
		Where("user_email = ? AND target_type = ? AND target_id = ?", userEmail, targetType, targetID).
		Delete(&model.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidateCountCache(ctx, targetType, targetID)
	return nil
}

// CountByTarget counts reactions of one kind on a target
func (r *reactionRepository) CountByTarget(ctx context.Context, targetType string, targetID int64, reaction string) (int64, error) {
	cacheKey := fmt.Sprintf("%s%s:%d:%s", reactionCountCachePrefix, targetType, targetID, reaction)
	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, cacheKey); err == nil {
			var count int64
			if _, err := fmt.Sscanf(cached, "%d", &count); err == nil {
				return count, nil
			}
		}
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Reaction{}).
		Where("target_type = ? AND target_id = ? AND reaction = ?", targetType, targetID, reaction).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	if r.redis != nil {
		r.redis.Set(ctx, cacheKey, fmt.Sprintf("%d", count), reactionCacheExpiration)
	}
	return count, nil
}

func (r *reactionRepository) invalidateCountCache(ctx context.Context, targetType string, targetID int64) {
	if r.redis == nil {
		return
	}
	r.redis.DeletePattern(ctx, fmt.Sprintf("%s%s:%d:*", reactionCountCachePrefix, targetType, targetID))
}
