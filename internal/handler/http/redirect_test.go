package http

import (
	"PURLS-Backend/internal/analytics"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirect_SubmitsClickDetails(t *testing.T) {
	var submitted []*analytics.ClickData
	env := newTestEnv(t, "", processorFunc(func(c *analytics.ClickData) error {
		submitted = append(submitted, c)
		return nil
	}))
	token := env.registerAndLogin(t, "alice")
	created := env.shorten(t, token, "https://example.com")

	req := httptest.NewRequest(http.MethodGet, "/"+created.ShortCode, nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("Referer", "https://news.example")
	req.Header.Set("User-Agent", desktopUA)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Len(t, submitted, 1)

	click := submitted[0]
	assert.Equal(t, created.ShortCode, click.ShortCode)
	assert.NotZero(t, click.LinkID)
	assert.Equal(t, "203.0.113.7", *click.IPAddress)
	assert.Equal(t, "https://news.example", *click.Referer)
	assert.Equal(t, desktopUA, *click.UserAgent)
	assert.False(t, click.ClickedAt.IsZero())
}

func TestRedirect_FullQueueStillRedirects(t *testing.T) {
	env := newTestEnv(t, "", processorFunc(func(*analytics.ClickData) error {
		return analytics.ErrQueueFull
	}))
	token := env.registerAndLogin(t, "alice")
	created := env.shorten(t, token, "https://example.com")

	rr := env.do(t, http.MethodGet, "/"+created.ShortCode, "", "")
	assert.Equal(t, http.StatusFound, rr.Code)

	link, err := env.store.GetLink(t.Context(), created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), link.ClickCount)
}

func TestRedirect_UnknownDoesNotSubmit(t *testing.T) {
	called := false
	env := newTestEnv(t, "", processorFunc(func(*analytics.ClickData) error {
		called = true
		return nil
	}))

	rr := env.do(t, http.MethodGet, "/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.False(t, called)
}

func TestExtractIPAddress(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "10.0.0.3:1234", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.2 "}, "10.0.0.3:1234", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"remote without port", nil, "192.0.2.11", "192.0.2.11"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"forwarded garbage falls through", map[string]string{"X-Forwarded-For": strings.Repeat("x", 100), "X-Real-IP": "198.51.100.3"}, "10.0.0.3:1234", "198.51.100.3"},
		{"oversized real ip ignored", map[string]string{"X-Real-IP": strings.Repeat("1", 100)}, "192.0.2.12:80", "192.0.2.12"},
		{"nothing usable", map[string]string{"X-Real-IP": "unknown"}, "pipe", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/abc", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, extractIPAddress(req))
		})
	}
}

func TestRedirect_OversizedHeadersAreNotForwarded(t *testing.T) {
	var submitted []*analytics.ClickData
	env := newTestEnv(t, "", processorFunc(func(c *analytics.ClickData) error {
		submitted = append(submitted, c)
		return nil
	}))
	token := env.registerAndLogin(t, "alice")
	created := env.shorten(t, token, "https://example.com")

	req := httptest.NewRequest(http.MethodGet, "/"+created.ShortCode, nil)
	req.Header.Set("X-Forwarded-For", strings.Repeat("9", 100))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Len(t, submitted, 1)
	require.NotNil(t, submitted[0].IPAddress)
	assert.Equal(t, "192.0.2.1", *submitted[0].IPAddress)
}
