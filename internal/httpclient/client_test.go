package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient keeps retries fast and logging quiet.
func newTestClient(t *testing.T, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func TestNew_Defaults(t *testing.T) {
	t.Run("max attempts floor is one", func(t *testing.T) {
		c := New(Config{MaxAttempts: 0})
		assert.Equal(t, 1, c.config.MaxAttempts)
	})

	t.Run("multiplier below one is replaced", func(t *testing.T) {
		c := New(Config{BackoffMultiplier: 0.5})
		assert.Equal(t, 2.0, c.config.BackoffMultiplier)
	})

	t.Run("base client is used when provided", func(t *testing.T) {
		base := &http.Client{Timeout: 5 * time.Second}
		cfg := DefaultConfig()
		cfg.BaseClient = base
		assert.Same(t, base, New(cfg).client)
	})
}

func TestGet(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "audiarr-test", r.Header.Get("User-Agent"))
			assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		c := newTestClient(t, func(cfg *Config) { cfg.UserAgent = "audiarr-test" })
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"status":"ok"}`, string(body))
	})

	t.Run("retries 503 until success", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		c := newTestClient(t, nil)
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := newTestClient(t, func(cfg *Config) { cfg.MaxAttempts = 2 })
		resp, err := c.Get(context.Background(), server.URL)
		require.ErrorIs(t, err, ErrMaxAttempts)
		assert.Nil(t, resp)
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("404 is returned, not retried", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := newTestClient(t, nil)
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := newTestClient(t, nil)
		_, err := c.Get(ctx, server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDecompression(t *testing.T) {
	const payload = `{"original_language":"ja"}`

	t.Run("gzip", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			gz.Write([]byte(payload))
			gz.Close()
		}))
		defer server.Close()

		c := newTestClient(t, nil)
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
	})

	t.Run("deflate", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "deflate")
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			fw.Write([]byte(payload))
			fw.Close()
		}))
		defer server.Close()

		c := newTestClient(t, nil)
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
	})

	t.Run("brotli", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			bw := brotli.NewWriter(w)
			bw.Write([]byte(payload))
			bw.Close()
		}))
		defer server.Close()

		c := newTestClient(t, nil)
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
	})

	t.Run("unknown encoding passes through", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "zstd")
			w.Write([]byte(payload))
		}))
		defer server.Close()

		c := newTestClient(t, nil)
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
	})

	t.Run("disabled leaves body compressed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			gz.Write([]byte(payload))
			gz.Close()
		}))
		defer server.Close()

		c := newTestClient(t, func(cfg *Config) { cfg.EnableDecompression = false })
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.NotEqual(t, payload, string(body))
	})
}

func TestBackoff(t *testing.T) {
	c := New(Config{
		RetryDelay:        time.Second,
		RetryMaxDelay:     5 * time.Second,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, 1*time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(3))
	assert.Equal(t, 5*time.Second, c.backoff(4))
	assert.Equal(t, 5*time.Second, c.backoff(10))
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "api_key is masked",
			in:   "https://api.themoviedb.org/3/movie/603?api_key=abc123&language=en",
			want: "https://api.themoviedb.org/3/movie/603?api_key=%2A%2A%2A&language=en",
		},
		{
			name: "mixed case is masked",
			in:   "https://example.com/?API_KEY=abc123",
			want: "https://example.com/?API_KEY=%2A%2A%2A",
		},
		{
			name: "plain parameters untouched",
			in:   "https://example.com/search?query=akira&page=2",
			want: "https://example.com/search?query=akira&page=2",
		},
		{
			name: "no query",
			in:   "https://example.com/health",
			want: "https://example.com/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, redactURL(u))
		})
	}

	t.Run("nil url", func(t *testing.T) {
		assert.Equal(t, "", redactURL(nil))
	})
}
