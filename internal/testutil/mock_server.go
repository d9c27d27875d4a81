package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a canned response for the mock page server.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPageServer serves a Feed in the JSON page format over HTTP:
//
//	GET /?key=<k>&size=<n>&direction=<append|prepend>
//	{"items":[{"id":..,"value":..}],"prev_key":..,"next_key":..}
type MockPageServer struct {
	server *httptest.Server
	feed   *Feed

	mu       sync.Mutex
	override *MockResponse
	requests int
	lastURL  string
}

type wireItem struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

type wirePage struct {
	Items   []wireItem `json:"items"`
	PrevKey *int       `json:"prev_key"`
	NextKey *int       `json:"next_key"`
}

// NewMockPageServer starts a server backed by feed.
func NewMockPageServer(feed *Feed) *MockPageServer {
	m := &MockPageServer{feed: feed}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

func (m *MockPageServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests++
	m.lastURL = r.URL.String()
	override := m.override
	m.mu.Unlock()

	if override != nil {
		if override.Delay > 0 {
			time.Sleep(override.Delay)
		}
		for k, v := range override.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(override.StatusCode)
		if override.Body != "" {
			_, _ = w.Write([]byte(override.Body))
		}
		return
	}

	q := r.URL.Query()
	key, err := strconv.Atoi(q.Get("key"))
	if err != nil {
		http.Error(w, `{"error":"invalid key"}`, http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(q.Get("size"))
	if err != nil || size <= 0 {
		http.Error(w, `{"error":"invalid size"}`, http.StatusBadRequest)
		return
	}

	data := m.feed.Page(key, size)
	page := wirePage{PrevKey: data.PrevKey, NextKey: data.NextKey, Items: []wireItem{}}
	for _, it := range data.Items {
		page.Items = append(page.Items, wireItem{ID: it.ID, Value: it.Value})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

// URL returns the server URL.
func (m *MockPageServer) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockPageServer) Close() {
	m.server.Close()
}

// SetResponse answers every request with resp until ClearResponse.
func (m *MockPageServer) SetResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = &resp
}

// ClearResponse restores feed-backed responses.
func (m *MockPageServer) ClearResponse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = nil
}

// RequestCount returns the number of requests served.
func (m *MockPageServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// LastURL returns the request URI of the latest request.
func (m *MockPageServer) LastURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastURL
}
