package spamcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meleshyn/comments-spa/internal/service"
)

// Client verifies captcha-style challenge tokens against an external
// verification endpoint speaking the common form-POST protocol.
type Client struct {
	endpoint string
	secret   string
	httpc    *http.Client
}

func NewClient(endpoint, secret string) *Client {
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
}

type verdict struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (c *Client) Check(ctx context.Context, token, remoteIP string) error {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("exec verification request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verification endpoint returned status %d", resp.StatusCode)
	}

	var v verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return fmt.Errorf("decode verification response: %w", err)
	}
	if !v.Success {
		if len(v.ErrorCodes) == 0 {
			return service.ErrSpamRejected
		}
		return fmt.Errorf("%w: %s", service.ErrSpamRejected, strings.Join(v.ErrorCodes, ", "))
	}
	return nil
}

// AllowAll accepts every submission. It backs deployments that run without
// a verification endpoint.
type AllowAll struct{}

func (AllowAll) Check(context.Context, string, string) error { return nil }
