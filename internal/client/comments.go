package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"forumsync/internal/model"
)

// PostComments returns the flat comment list of a post. The backend may include
// replies; callers filter by parent.
func (c *Client) PostComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	var comments []model.Comment
	if _, err := c.doJSON(ctx, http.MethodGet, idPath("/api/comments/post/%d", postID), nil, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// Replies returns the direct children of a comment.
func (c *Client) Replies(ctx context.Context, commentID int64) ([]model.Comment, error) {
	var comments []model.Comment
	if _, err := c.doJSON(ctx, http.MethodGet, idPath("/api/comments/%d/replies", commentID), nil, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment posts a new root comment or reply. Inputs with an Image are sent
// as multipart/form-data, everything else as JSON with imgPath "NO_IMAGE".
func (c *Client) CreateComment(ctx context.Context, in model.CommentInput) (*model.Comment, error) {
	email, err := c.identity(in.UserEmail)
	if err != nil {
		return nil, err
	}
	in.UserEmail = email

	var created model.Comment
	if in.Image != nil {
		req, err := c.multipartCreate(ctx, in)
		if err != nil {
			return nil, err
		}
		ok, err := c.send(req, &created)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("create comment: empty response")
		}
		return &created, nil
	}

	if in.ImgPath == "" {
		in.ImgPath = model.NoImage
	}
	ok, err := c.doJSON(ctx, http.MethodPost, "/api/comments", nil, in, &created)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("create comment: empty response")
	}
	return &created, nil
}

func (c *Client) multipartCreate(ctx context.Context, in model.CommentInput) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"forumPostId": strconv.FormatInt(in.ForumPostID, 10),
		"content":     in.Content,
		"userEmail":   in.UserEmail,
	}
	if in.ParentCommentID != nil {
		fields["parentCommentId"] = strconv.FormatInt(*in.ParentCommentID, 10)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, in.Image.Filename))
	contentType := in.Image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(in.Image.Data); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/comments", nil), &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// UpdateComment edits a comment. A nil comment with a nil error means the backend
// acknowledged the edit without returning the record.
func (c *Client) UpdateComment(ctx context.Context, id int64, in model.CommentInput) (*model.Comment, error) {
	email, err := c.identity(in.UserEmail)
	if err != nil {
		return nil, err
	}
	in.UserEmail = email
	if in.ImgPath == "" {
		in.ImgPath = model.NoImage
	}

	var updated model.Comment
	ok, err := c.doJSON(ctx, http.MethodPut, idPath("/api/comments/%d", id), nil, in, &updated)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &updated, nil
}

// DeleteComment removes a comment on behalf of userEmail.
func (c *Client) DeleteComment(ctx context.Context, id int64, userEmail string) error {
	email, err := c.identity(userEmail)
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, http.MethodDelete, idPath("/api/comments/%d", id), url.Values{"userEmail": {email}}, nil, nil)
	return err
}
