package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, c *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func TestDefault_advertisesBrotliAndGzip(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Accept-Encoding")
	}))
	defer srv.Close()

	get(t, Default(), srv.URL)
	assert.Equal(t, "br, gzip", got)
}

func TestDefault_decodesBrotli(t *testing.T) {
	const payload = `{"lineups":{"results":[]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte(payload))
		_ = bw.Close()
	}))
	defer srv.Close()

	resp, body := get(t, Default(), srv.URL)
	assert.Equal(t, payload, body)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
	assert.True(t, resp.Uncompressed)
}

func TestDefault_decodesGzip(t *testing.T) {
	const payload = "hello gzip"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte(payload))
		_ = zw.Close()
	}))
	defer srv.Close()

	resp, body := get(t, Default(), srv.URL)
	assert.Equal(t, payload, body)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestDefault_identityPassthrough(t *testing.T) {
	const payload = "plain body"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	resp, body := get(t, Default(), srv.URL)
	assert.Equal(t, payload, body)
	assert.False(t, resp.Uncompressed)
}

func TestDefault_respectsCallerAcceptEncoding(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Accept-Encoding")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := Default().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "identity", got)
}

func TestWithTimeout_sharesTransport(t *testing.T) {
	c := WithTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Same(t, Default().Transport, c.Transport)
	assert.NotSame(t, Default(), c)
}
