package elastic

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const infoBody = `{"name":"node-1","cluster_name":"test","version":{"number":"7.17.0","build_flavor":"default"},"tagline":"You Know, for Search"}`

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeEngine is an http.RoundTripper answering engine requests from a handler.
type fakeEngine struct {
	mu       sync.Mutex
	handler  func(r recordedRequest) (int, string)
	down     bool
	requests []recordedRequest
}

func (f *fakeEngine) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.down {
		return nil, errors.New("dial tcp 127.0.0.1:9200: connect: connection refused")
	}
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	if req.Method == http.MethodGet && req.URL.Path == "/" {
		return reply(req, http.StatusOK, infoBody), nil
	}

	r := recordedRequest{Method: req.Method, Path: req.URL.Path, Query: req.URL.RawQuery, Body: string(body)}
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()

	status, resp := http.StatusOK, `{}`
	if f.handler != nil {
		status, resp = f.handler(r)
	}
	return reply(req, status, resp), nil
}

func (f *fakeEngine) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no engine requests recorded")
	return f.requests[len(f.requests)-1]
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func reply(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
		Body:    io.NopCloser(strings.NewReader(body)),
		Request: req,
	}
}

func newTestStore(t *testing.T, f *fakeEngine) *Store {
	t.Helper()
	s, err := NewStore(Config{
		Addresses:  []string{"http://localhost:9200"},
		MaxRetries: -1,
		Transport:  f,
	})
	require.NoError(t, err)
	return s
}
