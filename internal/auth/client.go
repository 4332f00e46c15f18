package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stream-chat/internal/models"
	"stream-chat/pkg/logger"
)

// Client talks to the auth service over REST. The session cookie set by
// the server lives in the jar, which is shared with the realtime dialer so
// cookie-authenticated deployments work without a bearer token.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, jar http.CookieJar) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// Login exchanges a student id and birth-date secret for a credential.
// A rejection from the server comes back as *models.AuthRejectedError.
func (c *Client) Login(ctx context.Context, studentID, birthDate string) (*models.Credential, error) {
	body, err := json.Marshal(models.LoginRequest{StudentID: studentID, BirthDate: birthDate})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote models.ErrorPayload
		_ = json.NewDecoder(resp.Body).Decode(&remote)
		return nil, &models.AuthRejectedError{Message: remote.Message}
	}

	var loginResp models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}

	if loginResp.User.StudentID == "" || loginResp.AccessToken == "" {
		return nil, &models.AuthRejectedError{Message: "incomplete login response"}
	}

	return &models.Credential{
		StudentID:   loginResp.User.StudentID,
		FullName:    loginResp.User.FullName,
		AccessToken: loginResp.AccessToken,
	}, nil
}

// Verify asks the server whether the cookie-backed session is still valid.
// It never fails on "not authenticated": any error yields (nil, nil).
func (c *Client) Verify(ctx context.Context) (*models.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/verify", nil)
	if err != nil {
		return nil, nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("Session verify failed: %v", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var verifyResp models.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return nil, nil
	}
	if !verifyResp.Valid || verifyResp.User == nil {
		return nil, nil
	}

	return &models.Credential{
		StudentID: verifyResp.User.StudentID,
		FullName:  verifyResp.User.FullName,
	}, nil
}

// Logout is best-effort; callers log the error and move on.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
