package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"forumsync/internal/model"
)

// summaryEnvelope is the shape of the legacy summary endpoint.
type summaryEnvelope struct {
	Result *model.ReactionSummary `json:"result"`
}

// ReactionSummary fetches the like/dislike tally of a comment and the user's own
// reaction. When the primary endpoint fails the legacy enveloped endpoint is tried.
func (c *Client) ReactionSummary(ctx context.Context, commentID int64, userEmail string) (*model.ReactionSummary, error) {
	email, err := c.identity(userEmail)
	if err != nil {
		return nil, err
	}
	query := url.Values{"userEmail": {email}}

	var summary model.ReactionSummary
	ok, err := c.doJSON(ctx, http.MethodGet, idPath("/api/reactions/comment/%d/summary", commentID), query, nil, &summary)
	if err == nil && ok {
		return &summary, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	primaryErr := err
	if primaryErr == nil {
		primaryErr = errors.New("empty response")
	}

	var env summaryEnvelope
	ok, err = c.doJSON(ctx, http.MethodGet, idPath("/api/reactions/COMMENT/%d/summary", commentID), query, nil, &env)
	if err != nil {
		return nil, fmt.Errorf("reaction summary: %w (fallback after: %v)", err, primaryErr)
	}
	if !ok || env.Result == nil {
		return nil, fmt.Errorf("reaction summary: empty result (fallback after: %v)", primaryErr)
	}
	return env.Result, nil
}

// AddReaction records a reaction for the user on a target.
func (c *Client) AddReaction(ctx context.Context, in model.ReactionInput) error {
	email, err := c.identity(in.UserEmail)
	if err != nil {
		return err
	}
	in.UserEmail = email
	if in.TargetType == "" {
		in.TargetType = model.TargetTypeComment
	}
	if in.ReactionType == "" {
		in.ReactionType = model.ReactionLike
	}
	_, err = c.doJSON(ctx, http.MethodPost, "/api/reactions/add", nil, in, nil)
	return err
}

// RemoveReaction clears the user's reaction on a comment.
func (c *Client) RemoveReaction(ctx context.Context, commentID int64, userEmail string) error {
	email, err := c.identity(userEmail)
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, http.MethodPost, idPath("/api/reactions/COMMENT/%d", commentID), url.Values{"userEmail": {email}}, nil, nil)
	return err
}
