package model

import (
	"time"

	"gorm.io/gorm"
)

// NoImage is the imgPath placeholder sent when a comment has no attachment.
const NoImage = "NO_IMAGE"

// Comment is a forum comment. A nil ParentCommentID marks a root comment attached
// directly to the post; otherwise the comment is a reply to exactly one parent.
type Comment struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ForumPostID     int64          `gorm:"not null;index" json:"forumPostId"`
	ParentCommentID *int64         `gorm:"index" json:"parentCommentId,omitempty"` // For nested comments/replies
	Content         string         `gorm:"type:text;not null" json:"content"`
	UserEmail       string         `gorm:"type:varchar(255);not null;index" json:"userEmail"`
	Username        string         `gorm:"type:varchar(255)" json:"username"`
	UserAvatar      string         `gorm:"type:text" json:"userAvatar,omitempty"`
	ImgPath         string         `gorm:"type:text" json:"imgPath,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	LikeCount int64 `gorm:"-" json:"likeCount"` // Virtual field, calculated
}

// TableName specifies the table name
func (Comment) TableName() string {
	return "comments"
}

// IsRoot reports whether the comment hangs directly off the post.
func (c *Comment) IsRoot() bool {
	return c.ParentCommentID == nil
}

// HasAttachment reports whether the comment carries an image reference.
func (c *Comment) HasAttachment() bool {
	return c.ImgPath != "" && c.ImgPath != NoImage
}

// CommentInput is the body of the create and edit calls.
type CommentInput struct {
	ForumPostID     int64  `json:"forumPostId" validate:"required,gt=0" binding:"required,gt=0"`
	Content         string `json:"content" validate:"required" binding:"required"`
	UserEmail       string `json:"userEmail" validate:"required,email" binding:"required,email"`
	ParentCommentID *int64 `json:"parentCommentId,omitempty"`
	ImgPath         string `json:"imgPath,omitempty"`

	// Image, when set, switches the create call to multipart encoding.
	Image *Attachment `json:"-"`
}

// Attachment is an image sent alongside a new comment.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
