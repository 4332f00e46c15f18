// Package admin is the REST client behind the moderation dashboard:
// user listing, ban/unban and buffer statistics.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stream-chat/internal/buffer"
	"stream-chat/internal/models"
	"stream-chat/internal/server"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds an admin client using the bearer token obtained from
// an admin login.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) DashboardStats(ctx context.Context) (*server.DashboardStats, error) {
	var stats server.DashboardStats
	if err := c.get(ctx, "/admin/dashboard/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) ListUsers(ctx context.Context, page, limit int) (*server.UserPage, error) {
	query := url.Values{}
	query.Set("page", fmt.Sprint(page))
	query.Set("limit", fmt.Sprint(limit))

	var result server.UserPage
	if err := c.get(ctx, "/admin/users", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) OnlineUsers(ctx context.Context) ([]server.OnlineUser, error) {
	var online []server.OnlineUser
	if err := c.get(ctx, "/admin/users/online", nil, &online); err != nil {
		return nil, err
	}
	return online, nil
}

func (c *Client) BannedUsers(ctx context.Context) ([]*models.User, error) {
	var banned []*models.User
	if err := c.get(ctx, "/admin/users/banned", nil, &banned); err != nil {
		return nil, err
	}
	return banned, nil
}

func (c *Client) UserStatus(ctx context.Context, studentID string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("studentId", studentID)
	query.Set("userId", studentID)

	var status json.RawMessage
	if err := c.get(ctx, "/admin/users/status", query, &status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) BanUser(ctx context.Context, studentID, reason string) error {
	return c.post(ctx, "/admin/users/ban", map[string]string{
		"userId": studentID,
		"reason": reason,
	}, nil)
}

func (c *Client) UnbanUser(ctx context.Context, studentID string) error {
	return c.post(ctx, "/admin/users/unban", map[string]string{
		"userId": studentID,
	}, nil)
}

func (c *Client) BufferStats(ctx context.Context) (*buffer.StatsSnapshot, error) {
	var stats buffer.StatsSnapshot
	if err := c.get(ctx, "/admin/buffer-stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) FlushMessages(ctx context.Context) (int, error) {
	var result struct {
		Flushed int `json:"flushed"`
	}
	if err := c.post(ctx, "/admin/flush-messages", nil, &result); err != nil {
		return 0, err
	}
	return result.Flushed, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, op string, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote models.ErrorPayload
		_ = json.NewDecoder(resp.Body).Decode(&remote)
		if remote.Message == "" {
			remote.Message = resp.Status
		}
		return &models.RemoteError{Op: op, Message: remote.Message}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
