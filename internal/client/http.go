package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alfredjeanlab/kvcomments/internal/model"
)

// DefaultBasePath is the route prefix the server mounts comments under.
const DefaultBasePath = "/api/comments"

// HTTPClient implements CommentsClient using the comment service's HTTP API.
type HTTPClient struct {
	baseURL    string
	basePath   string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		basePath:   DefaultBasePath,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBasePath returns c with a different comment route prefix.
func (c *HTTPClient) WithBasePath(p string) *HTTPClient {
	if p != "" {
		c.basePath = "/" + strings.Trim(p, "/")
	}
	return c
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// envelope mirrors the server's JSON response shape.
type envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Data    []model.Comment `json:"data"`
	Comment *model.Comment  `json:"comment"`
}

// --- Comments ---

func (c *HTTPClient) List(ctx context.Context) ([]model.Comment, error) {
	var env envelope
	if err := c.doJSON(ctx, http.MethodGet, c.basePath, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []model.Comment{}, nil
	}
	return env.Data, nil
}

func (c *HTTPClient) Add(ctx context.Context, req *AddCommentRequest) (*model.Comment, error) {
	var env envelope
	if err := c.doJSON(ctx, http.MethodPost, c.basePath, req, &env); err != nil {
		return nil, err
	}
	if env.Comment == nil {
		return nil, errors.New("server response carried no comment")
	}
	return env.Comment, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, c.basePath+"/"+url.PathEscape(id), nil, nil)
}

// --- Probes ---

func (c *HTTPClient) ProbeGet(ctx context.Context, key string) ([]byte, error) {
	return c.doProbe(ctx, http.MethodGet, "kvGet", key, nil)
}

func (c *HTTPClient) ProbeSet(ctx context.Context, key string, value []byte) error {
	_, err := c.doProbe(ctx, http.MethodPost, "kvSet", key, value)
	return err
}

func (c *HTTPClient) ProbeDelete(ctx context.Context, key string) error {
	_, err := c.doProbe(ctx, http.MethodGet, "kvDelete", key, nil)
	return err
}

// --- System ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	respBody, err := c.do(ctx, method, path, "application/json", bodyReader)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// doProbe calls a raw KV probe action and returns the plain-text body.
func (c *HTTPClient) doProbe(ctx context.Context, method, action, key string, value []byte) ([]byte, error) {
	q := url.Values{}
	q.Set("action", action)
	q.Set("key", key)

	var bodyReader io.Reader
	if value != nil {
		bodyReader = bytes.NewReader(value)
	}
	return c.do(ctx, method, c.basePath+"?"+q.Encode(), "text/plain", bodyReader)
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

// errorMessage extracts msg (comment routes) or error (healthz) from an error
// body, falling back to the raw text for probe responses.
func errorMessage(body []byte) string {
	var errResp struct {
		Msg   string `json:"msg"`
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Msg != "" {
			return errResp.Msg
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return strings.TrimSpace(string(body))
}
