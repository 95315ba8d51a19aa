// Package upstream provides a mock provider server for tests. It
// simulates catalog and metadata upstreams, including throttling and
// failure responses.
package upstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Mock is a mock provider upstream backed by httptest.
type Mock struct {
	server       *httptest.Server
	responses    map[string]Response
	requestCount int
	mu           sync.Mutex
}

// Response defines a canned response for one endpoint path.
type Response struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string
}

// NewMock creates and starts a mock upstream.
func NewMock() *Mock {
	m := &Mock{responses: make(map[string]Response)}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

// URL returns the mock upstream's base URL.
func (m *Mock) URL() string {
	return m.server.URL
}

// Close shuts the mock upstream down.
func (m *Mock) Close() {
	m.server.Close()
}

// SetResponse sets the canned response for an endpoint path.
// Unconfigured paths respond 404.
func (m *Mock) SetResponse(path string, response Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = response
}

// RequestCount returns the number of requests received.
func (m *Mock) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// ResetRequestCount resets the request counter.
func (m *Mock) ResetRequestCount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
}

func (m *Mock) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	response, ok := m.responses[r.URL.Path]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		time.Sleep(response.Delay)
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(response.StatusCode)

	if response.Body != nil {
		switch v := response.Body.(type) {
		case string:
			_, _ = w.Write([]byte(v))
		case []byte:
			_, _ = w.Write(v)
		default:
			_ = json.NewEncoder(w).Encode(response.Body)
		}
	}
}

// CatalogResponse builds a catalog page body with the given item IDs.
func CatalogResponse(ids ...string) map[string]any {
	metas := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		metas = append(metas, map[string]any{
			"id":   id,
			"type": "movie",
			"name": "Item " + id,
		})
	}
	return map[string]any{"metas": metas}
}

// MetaResponse builds an item metadata body for the given ID.
func MetaResponse(id string) map[string]any {
	return map[string]any{
		"meta": map[string]any{
			"id":          id,
			"type":        "movie",
			"name":        "Item " + id,
			"releaseInfo": "2014",
		},
	}
}

// ThrottledResponse builds a 429 response with a Retry-After header.
func ThrottledResponse(retryAfterSeconds string) Response {
	return Response{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": retryAfterSeconds},
		Body:       map[string]any{"error": "rate limit exceeded"},
	}
}
