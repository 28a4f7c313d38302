package model

// Event types pushed over the comment feed.
const (
	EventCommentCreated = "comment.created"
	EventCommentUpdated = "comment.updated"
	EventCommentDeleted = "comment.deleted"
)

// CommentEvent is one change to a post's comment tree as broadcast by the backend.
// Deleted events carry only the identifiers of the removed comment.
type CommentEvent struct {
	Type    string   `json:"type"`
	PostID  int64    `json:"postId"`
	Comment *Comment `json:"comment"`
}

// FeedMessageComment tags feed envelopes whose payload is a CommentEvent.
const FeedMessageComment = "comment_event"
