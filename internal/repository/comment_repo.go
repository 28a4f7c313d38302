package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"forumsync/internal/model"
	"forumsync/internal/util"

	"gorm.io/gorm"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	FindByID(ctx context.Context, id int64) (*model.Comment, error)
	FindByPostID(ctx context.Context, postID int64) ([]*model.Comment, error)
	FindByParentID(ctx context.Context, parentID int64) ([]*model.Comment, error)
	Update(ctx context.Context, comment *model.Comment) error
	// Delete removes a comment together with every reply below it and returns
	// the ids that were removed.
	Delete(ctx context.Context, id int64) ([]int64, error)
	InvalidateLikeCounts(ctx context.Context, commentID int64)
}

type commentRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	commentCachePrefix         = "comment:"
	commentByPostCachePrefix   = "comment:post:"
	commentByParentCachePrefix = "comment:parent:"
	commentCacheExpiration     = 15 * time.Minute
)

// NewCommentRepository returns a gorm backed repository. redis may be nil.
func NewCommentRepository(db *gorm.DB, redis *util.RedisClient) CommentRepository {
	return &commentRepository{
		db:    db,
		redis: redis,
	}
}

// Create creates a new comment and invalidates related caches
func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}

	r.invalidatePostCache(ctx, comment.ForumPostID)
	if comment.ParentCommentID != nil {
		r.invalidateParentCache(ctx, *comment.ParentCommentID)
	}
	return nil
}

// FindByID finds a comment by ID
func (r *commentRepository) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	key := fmt.Sprintf("%s%d", commentCachePrefix, id)
	if cached, err := r.getFromCache(ctx, key); err == nil {
		return cached, nil
	}

	var comment model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, err
	}
	r.loadLikeCounts(ctx, []*model.Comment{&comment})

	r.cache(ctx, key, &comment)
	return &comment, nil
}

// FindByPostID returns every comment of a post, roots and replies alike, newest
// first. Clients filter roots by the absence of a parent.
func (r *commentRepository) FindByPostID(ctx context.Context, postID int64) ([]*model.Comment, error) {
	key := fmt.Sprintf("%s%d", commentByPostCachePrefix, postID)
	if cached, err := r.getListFromCache(ctx, key); err == nil {
		return cached, nil
	}

	var comments []*model.Comment
	err := r.db.WithContext(ctx).
		Where("forum_post_id = ?", postID).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	r.loadLikeCounts(ctx, comments)

	r.cache(ctx, key, comments)
	return comments, nil
}

// FindByParentID finds the direct replies to a comment, newest first
func (r *commentRepository) FindByParentID(ctx context.Context, parentID int64) ([]*model.Comment, error) {
	key := fmt.Sprintf("%s%d", commentByParentCachePrefix, parentID)
	if cached, err := r.getListFromCache(ctx, key); err == nil {
		return cached, nil
	}

	var comments []*model.Comment
	err := r.db.WithContext(ctx).
		Where("parent_comment_id = ?", parentID).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	r.loadLikeCounts(ctx, comments)

	r.cache(ctx, key, comments)
	return comments, nil
}

// loadLikeCounts fills LikeCount for a batch of comments in one grouped query.
func (r *commentRepository) loadLikeCounts(ctx context.Context, comments []*model.Comment) {
	if len(comments) == 0 {
		return
	}
	ids := make([]int64, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	var rows []struct {
		TargetID int64
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&model.Reaction{}).
		Select("target_id, count(*) as count").
		Where("target_type = ? AND reaction = ? AND target_id IN ?", model.TargetTypeComment, model.ReactionLike, ids).
		Group("target_id").
		Find(&rows).Error
	if err != nil {
		return
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.TargetID] = row.Count
	}
	for _, c := range comments {
		c.LikeCount = counts[c.ID]
	}
}

// Update saves content changes and invalidates cache
func (r *commentRepository) Update(ctx context.Context, comment *model.Comment) error {
	err := r.db.WithContext(ctx).Model(comment).
		Select("content", "img_path", "updated_at").
		Updates(comment).Error
	if err != nil {
		return err
	}

	r.invalidateComment(ctx, comment.ID)
	r.invalidatePostCache(ctx, comment.ForumPostID)
	if comment.ParentCommentID != nil {
		r.invalidateParentCache(ctx, *comment.ParentCommentID)
	}
	return nil
}

// Delete soft deletes a comment and its whole reply subtree in one transaction
func (r *commentRepository) Delete(ctx context.Context, id int64) ([]int64, error) {
	var root model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&root).Error; err != nil {
		return nil, err
	}

	removed := []int64{id}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		frontier := []int64{id}
		for len(frontier) > 0 {
			var next []int64
			if err := tx.Model(&model.Comment{}).
				Where("parent_comment_id IN ?", frontier).
				Pluck("id", &next).Error; err != nil {
				return err
			}
			removed = append(removed, next...)
			frontier = next
		}
		return tx.Where("id IN ?", removed).Delete(&model.Comment{}).Error
	})
	if err != nil {
		return nil, err
	}

	for _, rid := range removed {
		r.invalidateComment(ctx, rid)
		r.invalidateParentCache(ctx, rid)
	}
	r.invalidatePostCache(ctx, root.ForumPostID)
	if root.ParentCommentID != nil {
		r.invalidateParentCache(ctx, *root.ParentCommentID)
	}
	return removed, nil
}

// Cache helpers
func (r *commentRepository) cache(ctx context.Context, key string, v interface{}) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	r.redis.Set(ctx, key, string(data), commentCacheExpiration)
}

func (r *commentRepository) getFromCache(ctx context.Context, key string) (*model.Comment, error) {
	if r.redis == nil {
		return nil, util.ErrCacheMiss
	}
	cached, err := r.redis.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var comment model.Comment
	if err := json.Unmarshal([]byte(cached), &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) getListFromCache(ctx context.Context, key string) ([]*model.Comment, error) {
	if r.redis == nil {
		return nil, util.ErrCacheMiss
	}
	cached, err := r.redis.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var comments []*model.Comment
	if err := json.Unmarshal([]byte(cached), &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) invalidateComment(ctx context.Context, id int64) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(ctx, fmt.Sprintf("%s%d", commentCachePrefix, id))
}

func (r *commentRepository) invalidatePostCache(ctx context.Context, postID int64) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(ctx, fmt.Sprintf("%s%d", commentByPostCachePrefix, postID))
}

func (r *commentRepository) invalidateParentCache(ctx context.Context, parentID int64) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(ctx, fmt.Sprintf("%s%d", commentByParentCachePrefix, parentID))
}

// InvalidateLikeCounts drops cached lists that embed the like count of a comment.
// Reaction writes call it so summaries and comment lists agree.
func (r *commentRepository) InvalidateLikeCounts(ctx context.Context, commentID int64) {
	if r.redis == nil {
		return
	}
	c, err := r.FindByID(ctx, commentID)
	r.invalidateComment(ctx, commentID)
	if err != nil {
		return
	}
	r.invalidatePostCache(ctx, c.ForumPostID)
	if c.ParentCommentID != nil {
		r.invalidateParentCache(ctx, *c.ParentCommentID)
	}
}
