package service

import "errors"

var (
	ErrCommentNotFound  = errors.New("comment not found")
	ErrParentNotFound   = errors.New("parent comment not found")
	ErrParentMismatch   = errors.New("parent comment does not belong to this post")
	ErrForbidden        = errors.New("unauthorized: you can only change your own comments")
	ErrInvalidReaction  = errors.New("invalid reaction type")
	ErrReactionNotFound = errors.New("reaction not found")
	ErrDuplicateReport  = errors.New("you have already reported this content")
	ErrTargetNotFound   = errors.New("report target not found")
	ErrNoReasons        = errors.New("at least one reason is required")
)
