// internal/app/client/tutorapi/client.go
package tutorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/sessionstore"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrNotSignedIn is returned when the caller has no bearer token. The
	// request is not sent.
	ErrNotSignedIn = errors.New("sign in to use this feature")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("the tutoring service is temporarily unavailable")
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("tutoring service returned %d", e.Status)
	}
	return e.Detail
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// Recorder receives per-call metrics. *metrics.Recorder implements it.
type Recorder interface {
	APICall(endpoint, code string, elapsed time.Duration)
	Breaker(name string, state int)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    Recorder
	// Breaker trips after MinRequests calls in one Interval when at least
	// FailureRatio of them failed, and stays open for OpenTimeout.
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	OpenTimeout  time.Duration
}

// Client talks to the help-request/search API. It is shared by every
// browser client; As binds it to one caller's bearer token.
type Client struct {
	base    *url.URL
	hc      *http.Client
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
	metrics Recorder
}

// New validates the base URL and builds the shared client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("tutorapi: invalid base URL %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.6
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 10 * time.Second
	}

	c := &Client{base: base, hc: hc, log: logger, metrics: cfg.Metrics}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tutorapi",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		// Client errors are the caller's fault, not the service's.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, ErrNotSignedIn) || errors.Is(err, context.Canceled) {
				return true
			}
			s := StatusOf(err)
			return s >= 400 && s < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("tutorapi circuit breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
			if c.metrics != nil {
				c.metrics.Breaker(name, int(to))
			}
		},
	})
	return c, nil
}

// Caller is the client bound to one bearer token source.
type Caller struct {
	c  *Client
	hc *http.Client
}

// As returns a Caller whose requests carry tokens from ts. With a
// sessionstore.Store, an empty store fails the call with ErrNotSignedIn.
func (c *Client) As(ts oauth2.TokenSource) *Caller {
	base := c.hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := *c.hc
	hc.Transport = &oauth2.Transport{Source: ts, Base: base}
	return &Caller{c: c, hc: &hc}
}

type request struct {
	endpoint    string
	method      string
	path        string
	query       url.Values
	body        any
	rawBody     []byte
	contentType string
	header      http.Header
}

// do sends req through the breaker and decodes a JSON answer into out.
func (cl *Caller) do(ctx context.Context, req request, out any) error {
	start := time.Now()
	code := "error"
	defer func() {
		if cl.c.metrics != nil {
			cl.c.metrics.APICall(req.endpoint, code, time.Since(start))
		}
	}()

	_, err := cl.c.cb.Execute(func() (any, error) {
		resp, err := cl.send(ctx, req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		code = strconv.Itoa(resp.StatusCode)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, decodeError(resp)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("tutorapi %s: decode response: %w", req.endpoint, err)
		}
		return nil, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrUnavailable
	case err != nil:
		if StatusOf(err) == 0 && !errors.Is(err, ErrNotSignedIn) {
			cl.c.log.Warn("tutorapi call failed", zap.String("endpoint", req.endpoint), zap.Error(err))
		}
		return err
	}
	return nil
}

func (cl *Caller) send(ctx context.Context, req request) (*http.Response, error) {
	u := *cl.c.base
	u.Path = cl.c.base.Path + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.rawBody != nil:
		body = bytes.NewReader(req.rawBody)
	case req.body != nil:
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("tutorapi %s: encode request: %w", req.endpoint, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	hreq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	hreq.Header.Set("Accept", "application/json")

	resp, err := cl.hc.Do(hreq)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNoToken) {
			return nil, ErrNotSignedIn
		}
		return nil, err
	}
	return resp, nil
}

// ErrInvalidID is returned for ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid id")

func checkID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s id %q", ErrInvalidID, kind, id)
	}
	return nil
}

// decodeError reads a FastAPI style {"detail": ...} body. The detail may
// be a string or a list of validation errors.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	ae := &APIError{Status: resp.StatusCode}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			ae.Detail = s
			return ae
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(body.Detail, &list) == nil && len(list) > 0 {
			msgs := make([]string, 0, len(list))
			for _, d := range list {
				msgs = append(msgs, d.Msg)
			}
			ae.Detail = strings.Join(msgs, "; ")
			return ae
		}
		ae.Detail = string(body.Detail)
		return ae
	}
	ae.Detail = strings.TrimSpace(string(raw))
	return ae
}

// Ping checks that the service answers.
func (c *Client) Ping(ctx context.Context) error {
	u := *c.base
	u.Path = c.base.Path + "/ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}
