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
	"sync"
	"time"

	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/netx"
)

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 10 * time.Second

// HTTPClient talks to the SubMan REST API. It is safe for concurrent use.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	token string
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// WithClock replaces time.Now, used for defaults of missing server fields.
func WithClock(now func() time.Time) Option {
	return func(c *HTTPClient) { c.now = now }
}

// NewHTTPClient returns a client for the API rooted at baseURL, e.g.
// "http://localhost:3000/api". A non-positive timeout selects DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimPrefix(token, common.BearerPrefix)
}

func (c *HTTPClient) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return ""
	}
	return common.BearerPrefix + c.token
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/auth", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

type authRequest struct {
	Type     string `json:"type"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.auth(ctx, authRequest{Type: "login", Email: email, Password: password})
}

func (c *HTTPClient) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	return c.auth(ctx, authRequest{Type: "register", Email: email, Password: password, Name: name})
}

func (c *HTTPClient) auth(ctx context.Context, req authRequest) (*AuthResult, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.User) == 0 || string(resp.User) == "null" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "response has no user", kind: ErrServer}
	}
	u, err := decodeUser(resp.User, c.now())
	if err != nil {
		return nil, err
	}
	if u.Email == "" {
		u.Email = req.Email
	}
	return &AuthResult{Token: resp.Token, User: *u}, nil
}

func (c *HTTPClient) ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error) {
	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/subscriptions/user/"+url.PathEscape(userID), nil, &raw); err != nil {
		return nil, err
	}
	now := c.now()
	result := make([]models.Subscription, 0, len(raw))
	for _, item := range raw {
		s, err := decodeSubscription(item, userID, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrServer, err)
		}
		result = append(result, *s)
	}
	return result, nil
}

func (c *HTTPClient) CreateSubscription(ctx context.Context, s *models.Subscription) (*models.Subscription, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/subscriptions", encodeSubscription(s), &raw); err != nil {
		return nil, err
	}
	return mergeResponse(s, raw, c.now())
}

func (c *HTTPClient) UpdateSubscription(ctx context.Context, s *models.Subscription) (*models.Subscription, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPut, "/subscriptions/"+url.PathEscape(s.ID), encodeSubscription(s), &raw); err != nil {
		return nil, err
	}
	return mergeResponse(s, raw, c.now())
}

func (c *HTTPClient) DeleteSubscription(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil, nil)
}

// do sends one JSON request and decodes a JSON answer into out (when out is
// non-nil and the body is not empty). Transport failures become
// ErrUnavailable; error statuses become *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.bearer(); auth != "" {
		req.Header.Set(common.AuthorizationHeaderName, auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if netx.IsNetworkError(err) || ctx.Err() != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
		}
		return fmt.Errorf("%w: %v", ErrServer, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data), kind: classifyStatus(resp.StatusCode)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error(), kind: ErrServer}
	}
	return nil
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		s := strings.TrimSpace(string(data))
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	return strings.TrimSpace(strings.Join(nonEmpty(body.Message, body.Error), ": "))
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

var _ Client = (*HTTPClient)(nil)

var errNoRecord = errors.New("response has no subscription record")
