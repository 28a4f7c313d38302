package model

import (
	"time"
)

type Reaction struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserEmail  string    `gorm:"type:varchar(255);not null;index:idx_user_target,unique" json:"userEmail"`
	TargetType string    `gorm:"type:varchar(20);not null;index:idx_user_target,unique" json:"targetType"` // POST, COMMENT
	TargetID   int64     `gorm:"not null;index:idx_user_target,unique" json:"targetId"`
	Reaction   string    `gorm:"type:varchar(20);default:'LIKE'" json:"reactionType"` // LIKE, DISLIKE
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName specifies the table name
func (Reaction) TableName() string {
	return "reactions"
}

// Constants for target types
const (
	TargetTypePost    = "POST"
	TargetTypeComment = "COMMENT"
)

// Constants for reactions
const (
	ReactionLike    = "LIKE"
	ReactionDislike = "DISLIKE"
)

// ReactionInput is the body of POST /api/reactions/add.
type ReactionInput struct {
	TargetType   string `json:"targetType" validate:"required,oneof=POST COMMENT" binding:"required,oneof=POST COMMENT"`
	TargetID     int64  `json:"targetId" validate:"required,gt=0" binding:"required,gt=0"`
	UserEmail    string `json:"userEmail" validate:"required,email" binding:"required,email"`
	ReactionType string `json:"reactionType" validate:"required,oneof=LIKE DISLIKE" binding:"required,oneof=LIKE DISLIKE"`
}

// ReactionSummary is the per-target tally plus the requesting user's own reaction.
// UserReaction is empty when the user has not reacted.
type ReactionSummary struct {
	LikeCount    int64  `json:"likeCount"`
	DislikeCount int64  `json:"dislikeCount"`
	UserReaction string `json:"userReaction,omitempty"`
}

// Liked reports whether the requesting user currently likes the target.
func (s ReactionSummary) Liked() bool {
	return s.UserReaction == ReactionLike
}
