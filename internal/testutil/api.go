package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
)

// APICall is one request received by a FakeAPI.
type APICall struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	Body          []byte
}

// FakeAPI stands in for the help-request/search service. Handler answers
// every request; calls are recorded in order.
type FakeAPI struct {
	Server *httptest.Server
	Client *tutorapi.Client

	mu    sync.Mutex
	calls []APICall
}

// NewFakeAPI starts a server running handler and a tutorapi.Client
// pointed at it. Both are shut down when the test ends.
func NewFakeAPI(t *testing.T, handler http.Handler) *FakeAPI {
	t.Helper()
	f := &FakeAPI{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, APICall{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          body,
		})
		f.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Server.Close)

	c, err := tutorapi.New(tutorapi.Config{BaseURL: f.Server.URL})
	if err != nil {
		t.Fatalf("tutorapi.New: %v", err)
	}
	f.Client = c
	return f
}

// Calls returns the recorded requests.
func (f *FakeAPI) Calls() []APICall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]APICall(nil), f.calls...)
}

// Last returns the most recent request.
func (f *FakeAPI) Last(t *testing.T) APICall {
	t.Helper()
	calls := f.Calls()
	if len(calls) == 0 {
		t.Fatal("no API request recorded")
	}
	return calls[len(calls)-1]
}

// WriteJSON answers an API request with v.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
