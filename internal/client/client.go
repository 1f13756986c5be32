// Package client talks to the uistudio REST API. It implements the
// persistence and generation collaborators the studio core depends on.
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
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"uistudio/internal/model"
	"uistudio/internal/studio"
)

const apiPrefix = "/api/v1"

var (
	_ studio.Store     = (*Client)(nil)
	_ studio.Generator = (*Client)(nil)
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	var out []model.Session
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Session{}
	}
	return out, nil
}

func (c *Client) GetSession(ctx context.Context, id uint) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodGet, sessionPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSession(ctx context.Context, name string) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSession(ctx context.Context, id uint, patch model.SessionPatch) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodPut, sessionPath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id), nil, nil)
}

// AddChatMessage appends a user message server-side.
func (c *Client) AddChatMessage(ctx context.Context, id uint, content string) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/chat", map[string]string{"message": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Generate(ctx context.Context, req studio.GenerateRequest) (*studio.GenerateResult, error) {
	var out studio.GenerateResult
	if err := c.do(ctx, http.MethodPost, "/ai/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func sessionPath(id uint) string {
	return "/sessions/" + strconv.FormatUint(uint64(id), 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s request failed: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s request failed: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, fmt.Errorf("read %s %s response failed: %w", method, path, err))
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 300 {
		c.log.Warn("api request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Int("code", env.Code),
			zap.String("message", env.Message),
		)
		return statusError(resp.StatusCode, env.Message)
	}
	if decodeErr != nil {
		return studio.NewError(studio.ErrServer, resp.StatusCode, "",
			fmt.Errorf("parse %s %s response failed: %w", method, path, decodeErr))
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return studio.NewError(studio.ErrServer, resp.StatusCode, "",
			fmt.Errorf("parse %s %s payload failed: %w", method, path, err))
	}
	return nil
}

func statusError(status int, serverMessage string) error {
	kind := studio.KindForStatus(status)
	cause := fmt.Errorf("status %d: %s", status, serverMessage)
	if kind == studio.ErrValidation {
		return studio.NewError(kind, status, serverMessage, cause)
	}
	return studio.NewError(kind, status, "", cause)
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return studio.NewError(studio.ErrTimeout, 0, "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return studio.NewError(studio.ErrTimeout, 0, "", err)
	}
	return studio.NewError(studio.ErrNetwork, 0, "", err)
}
