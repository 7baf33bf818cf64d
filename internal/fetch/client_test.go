package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agscout/agscout/internal/resilience"
)

func newTestClient(opts Options) *Client {
	if opts.HostRate == 0 {
		opts.HostRate = 1000 // tests should not wait on the limiter
	}
	if opts.HostBurst == 0 {
		opts.HostBurst = 1000
	}
	return NewClient(opts)
}

func TestClient_Get_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		_, _ = w.Write([]byte("<html><body>AgriTech Labs builds precision farming tools</body></html>"))
	}))
	defer srv.Close()

	c := newTestClient(Options{Blocklist: []string{"nothing.invalid"}})
	page, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.HTML, "AgriTech Labs")
	assert.Equal(t, srv.URL, page.URL)
}

func TestClient_Get_BlocklistedHostNoNetworkCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := newTestClient(Options{Blocklist: []string{"127.0.0.1"}})
	_, err := c.Get(context.Background(), srv.URL)

	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestClient_Get_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(Options{Blocklist: []string{"nothing.invalid"}})
	_, err := c.Get(context.Background(), srv.URL)

	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestClient_Get_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(Options{Blocklist: []string{"nothing.invalid"}})
	_, err := c.Get(context.Background(), srv.URL)

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestClient_Get_BlockedBodyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>please solve this captcha to continue</html>"))
	}))
	defer srv.Close()

	c := newTestClient(Options{Blocklist: []string{"nothing.invalid"}})
	_, err := c.Get(context.Background(), srv.URL)

	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.Contains(t, err.Error(), "captcha")
}

func TestClient_Get_InvalidURL(t *testing.T) {
	c := newTestClient(Options{})
	_, err := c.Get(context.Background(), "not a url")
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
}

func TestClient_Get_BodySizeCapped(t *testing.T) {
	big := strings.Repeat("x", 10*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>" + big + "</html>"))
	}))
	defer srv.Close()

	c := newTestClient(Options{Blocklist: []string{"nothing.invalid"}, MaxBodySize: 4096})
	page, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.HTML, 4096)
}

func TestClient_Get_RateLimiterSerializesPerHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	// 10 req/sec with burst 1 forces a ~100ms wait before the second fetch.
	c := NewClient(Options{HostRate: 10, HostBurst: 1, Blocklist: []string{"nothing.invalid"}})

	start := time.Now()
	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_Head_FallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("<html>profile</html>"))
	}))
	defer srv.Close()

	c := newTestClient(Options{Blocklist: []string{"nothing.invalid"}})
	code, err := c.Head(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, code)
}

func TestClient_Head_ReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(Options{Blocklist: []string{"nothing.invalid"}})
	code, err := c.Head(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 404, code)
}
