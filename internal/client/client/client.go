package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/common"
)

const (
	removeBackgroundPath = "/api/v1/images/remove-background"
	maxErrorBody         = 4 << 10
)

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Result struct {
	ProcessedKey  string    `json:"processedKey"`
	OriginalSize  Size      `json:"originalSize"`
	ProcessedSize *Size     `json:"processedSize,omitempty"`
	ProcessedAt   time.Time `json:"processedAt"`
}

// Task is the status document of one task.
type Task struct {
	TaskID    string    `json:"taskId"`
	Status    string    `json:"status"`
	TaskType  string    `json:"taskType"`
	FileID    string    `json:"fileId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Terminal reports whether the task will not change any more.
func (t *Task) Terminal() bool {
	return t.Status == "completed" || t.Status == "failed"
}

type Submitted struct {
	TaskID  string `json:"taskId"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// New returns a client for the API at baseURL. A nil httpClient means
// http.DefaultClient.
func New(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, token: token, http: httpClient}, nil
}

// Submit starts background removal for fileID.
func (c *Client) Submit(ctx context.Context, fileID string) (*Submitted, error) {
	body, err := json.Marshal(map[string]string{"fileId": fileID})
	if err != nil {
		return nil, err
	}
	var out Submitted
	if err := c.do(ctx, http.MethodPost, removeBackgroundPath, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, taskID string) (*Task, error) {
	var out Task
	if err := c.do(ctx, http.MethodGet, removeBackgroundPath+"/"+url.PathEscape(taskID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Wait polls Status every interval until the task is terminal or ctx is
// done. A failed task is returned together with ErrTaskFailed. When ctx
// ends first, the last observed task is returned with ctx.Err().
func (c *Client) Wait(ctx context.Context, taskID string, interval time.Duration) (*Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *Task
	for {
		t, err := c.Status(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, err
		}
		last = t
		if t.Terminal() {
			if t.Status == "failed" {
				return t, fmt.Errorf("%w: %s", ErrTaskFailed, t.Error)
			}
			return t, nil
		}

		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-ticker.C:
		}
	}
}

// do sends one request. path must already be escaped.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return err
	}
	u.Path = unescaped

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, TraceID: resp.Header.Get(common.TraceIDHeaderName)}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var e struct {
			Error   string `json:"error"`
			TraceID string `json:"trace_id"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			if e.TraceID != "" {
				apiErr.TraceID = e.TraceID
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
