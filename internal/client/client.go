package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"chatctl/internal/config"
)

const defaultBaseURL = "http://127.0.0.1:8700"

// DefaultTimeout bounds every request issued through the client so a
// stalled poll cannot wedge the session loop.
const DefaultTimeout = 10 * time.Second

type Client struct {
	baseURL   string
	tokenPath string
	token     string
	http      *http.Client
}

func New() (*Client, error) {
	tokenPath, err := config.TokenPath()
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   defaultBaseURL,
		tokenPath: tokenPath,
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	_ = c.loadToken()
	return c, nil
}

func NewWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetBaseURL points the client at a non-default server, typically from
// config.
func (c *Client) SetBaseURL(baseURL string) {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// SetTimeout overrides the per-request timeout, typically from config.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.http.Timeout = timeout
	}
}

// SendChat creates or continues a job. A 402 response is surfaced as
// ErrInsufficientBalance and is fatal only to this attempt; the caller
// must not persist any job handle in that case.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat", req, true, &resp); err != nil {
		if apiErr := AsAPIError(err); apiErr != nil && apiErr.StatusCode == http.StatusPaymentRequired {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientBalance, apiErr.Message)
		}
		return nil, err
	}
	return &resp, nil
}

// PollJob fetches activities with id greater than sinceActivityID.
func (c *Client) PollJob(ctx context.Context, jobID string, sinceActivityID int64) (*JobPollResponse, error) {
	path := fmt.Sprintf("/jobs/%s?since_activity_id=%d", jobID, sinceActivityID)
	var resp JobPollResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RespondJob answers a pending question; valid only while the job is
// paused on user input.
func (c *Client) RespondJob(ctx context.Context, jobID, response string) error {
	path := fmt.Sprintf("/jobs/%s/respond", jobID)
	return c.doJSON(ctx, http.MethodPost, path, RespondRequest{Response: response}, true, nil)
}

// CancelJob requests cancellation. Idempotent on the server side.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	path := fmt.Sprintf("/jobs/%s/cancel", jobID)
	return c.doJSON(ctx, http.MethodPost, path, nil, true, nil)
}

// LoadMessages performs a full reload of a conversation's history.
func (c *Client) LoadMessages(ctx context.Context, conversationID string) (*MessagesResponse, error) {
	path := fmt.Sprintf("/conversations/%s/messages", conversationID)
	var resp MessagesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkRead is a fire-and-forget side effect; callers ignore the error
// beyond logging.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/conversations/%s/read", conversationID)
	return c.doJSON(ctx, http.MethodPost, path, nil, true, nil)
}

// InvalidateSession discards cached credentials after an unauthorized
// response so the next start forces a fresh login.
func (c *Client) InvalidateSession() error {
	c.token = ""
	if c.tokenPath == "" {
		return nil
	}
	if err := os.Remove(c.tokenPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, requireAuth bool, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth && strings.TrimSpace(c.token) != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) loadToken() error {
	if c.tokenPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.token = ""
			return nil
		}
		return err
	}
	c.token = strings.TrimSpace(string(data))
	return nil
}

// classifyTransportError separates a deliberate caller cancellation from
// a transient network failure so the poller never mistakes a timeout for
// a user-initiated stop.
func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %v", ErrRequestCancelled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

func decodeAPIError(resp *http.Response) error {
	type errorPayload struct {
		Error string `json:"error"`
	}
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	message := payload.Error
	if message == "" {
		message = resp.Status
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: message}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w", ErrTransient, apiErr)
	}
	return apiErr
}
