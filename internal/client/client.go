// Package client provides a REST client for the altron server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/models"
)

// DefaultURL is used when neither an explicit URL nor ALTRON_SERVER_URL is set.
const DefaultURL = "http://localhost:8484"

// Client talks to the altron HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses ALTRON_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via ALTRON_CLIENT_TIMEOUT env var (default 2m).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("ALTRON_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("ALTRON_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// do sends a request and decodes the JSON response into result when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// THREADS
// =============================================================================

// ListThreads returns thread summaries, most recently updated first.
func (c *Client) ListThreads(ctx context.Context) ([]models.ThreadInfo, error) {
	var infos []models.ThreadInfo
	if err := c.do(ctx, http.MethodGet, "/threads", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// CreateThread starts an empty thread.
func (c *Client) CreateThread(ctx context.Context, title string) (*models.Thread, error) {
	var thread models.Thread
	if err := c.do(ctx, http.MethodPost, "/thread", map[string]string{"title": title}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// GetThread returns the full thread.
func (c *Client) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	var thread models.Thread
	if err := c.do(ctx, http.MethodGet, "/thread/"+url.PathEscape(id), nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// ThreadInfo returns the derived thread summary.
func (c *Client) ThreadInfo(ctx context.Context, id string) (*models.ThreadInfo, error) {
	var info models.ThreadInfo
	if err := c.do(ctx, http.MethodGet, "/thread/"+url.PathEscape(id)+"/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// RenameThread changes a thread's title.
func (c *Client) RenameThread(ctx context.Context, id, title string) (*models.Thread, error) {
	var thread models.Thread
	if err := c.do(ctx, http.MethodPatch, "/thread/"+url.PathEscape(id), map[string]string{"title": title}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// DeleteThread removes a thread.
func (c *Client) DeleteThread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/thread/"+url.PathEscape(id), nil, nil)
}

// NewMessage is a message to append. The server fills in a missing id and
// timestamp.
type NewMessage struct {
	ID      string                `json:"id,omitempty"`
	Role    models.Role           `json:"role"`
	Content models.MessageContent `json:"content"`
}

// AppendMessage adds a message to the end of a thread.
func (c *Client) AppendMessage(ctx context.Context, threadID string, msg NewMessage) (*models.Message, error) {
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/thread/"+url.PathEscape(threadID)+"/messages", msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Exchange is a conversation turn: the stored user message and the reply.
type Exchange struct {
	Message models.Message `json:"message"`
	Reply   models.Message `json:"reply"`
}

// Converse sends a user message and waits for the assistant's reply.
func (c *Client) Converse(ctx context.Context, threadID string, msg NewMessage) (*Exchange, error) {
	if msg.Role == "" {
		msg.Role = models.RoleUser
	}
	var out Exchange
	if err := c.do(ctx, http.MethodPost, "/thread/"+url.PathEscape(threadID)+"/converse", msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ThreadEvent mirrors the events streamed for a thread.
type ThreadEvent struct {
	Type     string          `json:"type"`
	ThreadID string          `json:"threadId"`
	Title    string          `json:"title,omitempty"`
	Message  *models.Message `json:"message,omitempty"`
}

// WatchThread streams a thread's events until ctx is cancelled, the thread
// is deleted, or onEvent returns an error.
func (c *Client) WatchThread(ctx context.Context, threadID string, onEvent func(ThreadEvent) error) error {
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	u, err := url.Parse(wsURL + "/thread/" + url.PathEscape(threadID) + "/events")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return &APIError{StatusCode: resp.StatusCode, Message: "thread not found: " + threadID}
		}
		return fmt.Errorf("websocket connect: %w", err)
	}

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var ev ThreadEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			return err
		}
	}
}

// =============================================================================
// JOBS
// =============================================================================

// JobCreated is the response to a job submission. CreatedAt is Unix
// seconds with a fractional part.
type JobCreated struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	CreatedAt   string `json:"created_at"`
}

// JobStatus is the lifecycle state of a job.
type JobStatus struct {
	ID       string           `json:"id"`
	Title    string           `json:"title,omitempty"`
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
}

// JobResult is a job's output.
type JobResult struct {
	ID     string           `json:"id"`
	Status models.JobStatus `json:"status"`
	Text   string           `json:"text"`
	Images []string         `json:"images"`
	Error  *string          `json:"error,omitempty"`
}

// CreateJob submits a job.
func (c *Client) CreateJob(ctx context.Context, title, description string, priority int) (*JobCreated, error) {
	body := map[string]any{"title": title, "description": description, "priority": priority}
	var out JobCreated
	if err := c.do(ctx, http.MethodPost, "/subprocess/job/create", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func jobQuery(path, id string) string {
	return path + "?" + url.Values{"job_id": {id}}.Encode()
}

// JobStatus returns a job's status and progress.
func (c *Client) JobStatus(ctx context.Context, id string) (*JobStatus, error) {
	var out JobStatus
	if err := c.do(ctx, http.MethodGet, jobQuery("/subprocess/job/get_status", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobResult returns a job's output. Text is empty until the job completes.
func (c *Client) JobResult(ctx context.Context, id string) (*JobResult, error) {
	var out JobResult
	if err := c.do(ctx, http.MethodGet, jobQuery("/subprocess/job/get_result", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TerminateJob stops a pending or running job.
func (c *Client) TerminateJob(ctx context.Context, id string) (*JobStatus, error) {
	var out JobStatus
	if err := c.do(ctx, http.MethodDelete, jobQuery("/subprocess/job/terminate", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs returns all jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]JobStatus, error) {
	var out []JobStatus
	if err := c.do(ctx, http.MethodGet, "/subprocess/job/list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// RELAY AND STATS
// =============================================================================

// RelayPing checks that the relay is reachable.
func (c *Client) RelayPing(ctx context.Context) (string, error) {
	var pong string
	if err := c.do(ctx, http.MethodGet, "/discord/ping", nil, &pong); err != nil {
		return "", err
	}
	return pong, nil
}

// RelaySend forwards chat messages and returns the bot's reply.
func (c *Client) RelaySend(ctx context.Context, msgs []models.RelayMessage) ([]models.RelayMessage, error) {
	var out struct {
		Messages []models.RelayMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodPost, "/discord/message", map[string]any{"messages": msgs}, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Stats returns the server's operation metrics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
