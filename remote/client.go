package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"kanban-board/domain"
)

// HeaderIdempotencyKey deduplicates create requests on the server.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxErrorBody = 4 * 1024

type idempotencyKeyCtx struct{}

// WithIdempotencyKey attaches the key Client.Create sends with the request.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

func idempotencyKey(ctx context.Context) string {
	if v, ok := ctx.Value(idempotencyKeyCtx{}).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

// Client is an Adapter talking to the board API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client; a nil http.Client gets a 30s timeout default.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) List(ctx context.Context) ([]domain.Task, error) {
	var resp tasksResponse
	if err := c.do(ctx, OpList, http.MethodGet, "/api/tasks", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tasks == nil {
		resp.Tasks = []domain.Task{}
	}
	return resp.Tasks, nil
}

func (c *Client) Create(ctx context.Context, t domain.NewTask) (domain.Task, error) {
	var out domain.Task
	hdr := http.Header{}
	hdr.Set(HeaderIdempotencyKey, idempotencyKey(ctx))
	if err := c.do(ctx, OpCreate, http.MethodPost, "/api/tasks", hdr, t, &out); err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	var out domain.Task
	if err := c.do(ctx, OpUpdate, http.MethodPatch, "/api/tasks/"+id, nil, patch, &out); err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, OpDelete, http.MethodDelete, "/api/tasks/"+id, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, hdr http.Header, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return storeErr(op, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err))
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return storeErr(op, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return storeErr(op, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return storeErr(op, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return storeErr(op, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, readErrorBody(resp.Body)))
	}
	if out == nil {
		return nil
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil {
		return storeErr(op, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err))
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var er errorResponse
	if err := sonic.Unmarshal(data, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(data))
}
