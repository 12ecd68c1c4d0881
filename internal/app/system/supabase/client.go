// Package supabase talks to a hosted auth provider (GoTrue under /auth/v1)
// and its row store (PostgREST under /rest/v1) over HTTP.
package supabase

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

	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

// Config describes one project.
type Config struct {
	URL     string // e.g. https://xyz.supabase.co
	AnonKey string

	HTTPClient *http.Client
	Logger     *zap.Logger
	Now        func() time.Time
}

// Client is one browser's connection to the project. It keeps that
// browser's session, refreshes it when it expires, and publishes
// auth-state changes. It implements provider.Auth and provider.Rows; row
// calls carry the session's bearer so row-level security applies.
type Client struct {
	base    string
	anonKey string
	http    *http.Client
	log     *zap.Logger
	now     func() time.Time
	bc      *provider.Broadcaster

	opMu sync.Mutex

	mu      sync.Mutex
	session *models.Session
}

var (
	_ provider.Auth = (*Client)(nil)
	_ provider.Rows = (*Client)(nil)
)

// New creates a signed-out client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		base:    strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		http:    hc,
		log:     log,
		now:     now,
		bc:      provider.NewBroadcaster(),
	}
}

// Subscribe returns a subscription to this client's auth-state changes.
func (c *Client) Subscribe() *provider.Subscription {
	return c.bc.Subscribe()
}

func (c *Client) current() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

func (c *Client) setSession(s *models.Session) {
	c.mu.Lock()
	c.session = s.Clone()
	c.mu.Unlock()
}

func (c *Client) publish(kind provider.EventKind, s *models.Session) {
	c.bc.Publish(provider.Event{Kind: kind, Session: s.Clone()})
}

// request is one HTTP call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	bearer string // empty uses the anon key
	header http.Header
}

// do sends req and decodes a 2xx JSON answer into out (if non-nil).
// Non-2xx answers become *provider.Error.
func (c *Client) do(ctx context.Context, req request, out any) error {
	u := c.base + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", req.path, err)
		}
		body = bytes.NewReader(b)
	}

	hr, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return err
	}
	bearer := req.bearer
	if bearer == "" {
		bearer = c.anonKey
	}
	hr.Header.Set("apikey", c.anonKey)
	hr.Header.Set("Authorization", "Bearer "+bearer)
	hr.Header.Set("Accept", "application/json")
	if req.body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := decodeError(resp.StatusCode, raw)
		c.log.Debug("supabase call failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", perr.Code))
		return perr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.path, err)
	}
	return nil
}

// errorBody covers the error shapes of both services: GoTrue answers
// {code, error_code, msg} (or the OAuth {error, error_description}) and
// PostgREST answers {code, message, details, hint}.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func decodeError(status int, raw []byte) *provider.Error {
	perr := &provider.Error{Status: status}
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		perr.Message = strings.TrimSpace(string(raw))
		if perr.Message == "" {
			perr.Message = http.StatusText(status)
		}
		return perr
	}

	// PostgREST codes are strings; GoTrue's "code" is the HTTP status.
	var code string
	if err := json.Unmarshal(eb.Code, &code); err == nil {
		perr.Code = code
	}
	if eb.ErrorCode != "" {
		perr.Code = eb.ErrorCode
	}
	if perr.Code == "" {
		perr.Code = eb.Error
	}

	for _, m := range []string{eb.Msg, eb.Message, eb.ErrorDescription, eb.Error} {
		if m != "" {
			perr.Message = m
			break
		}
	}
	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}
	return perr
}

// accessToken returns the bearer for row calls, refreshing an expired
// session first. With no session the anon key is used.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return s.AccessToken, nil
}

func isUnauthorized(err error) bool {
	var pe *provider.Error
	return errors.As(err, &pe) && pe.Status == http.StatusUnauthorized
}
