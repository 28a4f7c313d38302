package client

import (
	"context"
	"net/http"
	"net/url"

	"forumsync/internal/model"
)

// CreateReport files a moderation report. The backend answers 400 when the same
// reporter already reported the target.
func (c *Client) CreateReport(ctx context.Context, userEmail string, in model.ReportInput) error {
	email, err := c.identity(userEmail)
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, http.MethodPost, "/api/reports/create", url.Values{"userEmail": {email}}, in, nil)
	return err
}
