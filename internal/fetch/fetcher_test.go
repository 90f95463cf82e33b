package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRetryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memRetryCounter) IncrFetchRetries(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[url]++
	return nil
}

func TestFetchReturnsBodyAndContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	f := New(5*time.Second, 100, 0, zap.NewNop())
	res, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, res.HTML())
	assert.Contains(t, string(res.Body), "hello")
}

func TestFetchErrorStatusIsResultNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	f := New(5*time.Second, 100, 0, zap.NewNop())
	res, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusGone, res.StatusCode)
	assert.Empty(t, res.Body, "error responses carry no body for comparison")
}

func TestFetchUnreachableAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := server.URL
	server.Close()

	counter := &memRetryCounter{}
	f := New(2*time.Second, 100, 1, zap.NewNop())
	f.CountRetries(counter)

	_, err := f.Fetch(context.Background(), deadURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)

	counter.mu.Lock()
	defer counter.mu.Unlock()
	assert.Equal(t, 1, counter.counts[deadURL])
}

func TestProbeFallsBackToGetOn405(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(5*time.Second, 100, 0, zap.NewNop())
	res, err := f.Probe(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, res.Body, "probes never download the body")
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{http.MethodHead, http.MethodGet}, methods)
}

func TestResultHTML(t *testing.T) {
	assert.True(t, (&Result{ContentType: "text/html"}).HTML())
	assert.True(t, (&Result{ContentType: "Text/HTML; charset=ISO-8859-1"}).HTML())
	assert.True(t, (&Result{ContentType: "application/xhtml+xml"}).HTML())
	assert.False(t, (&Result{ContentType: "application/json"}).HTML())
	assert.False(t, (&Result{ContentType: ""}).HTML())
}
