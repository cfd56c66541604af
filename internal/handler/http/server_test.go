package http

import (
	"PURLS-Backend/internal/analytics"
	"PURLS-Backend/internal/auth"
	"PURLS-Backend/internal/config"
	"PURLS-Backend/internal/repository/memory"
	"PURLS-Backend/internal/service"
	"PURLS-Backend/pkg/useragent"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type testEnv struct {
	handler    http.Handler
	store      *memory.MemStorage
	jwtService *auth.JWTService
}

func newTestEnv(t *testing.T, baseURL string, processor ClickProcessor, origins ...string) *testEnv {
	t.Helper()

	if len(origins) == 0 {
		origins = []string{"*"}
	}

	log := zap.NewNop()
	store := memory.New()
	shortener := service.NewURLShortener(store, &config.URLShortener{CodeLength: 7, MaxRetries: 5}, log)
	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey:      []byte("test-secret"),
		AccessTokenTTL: 5 * time.Hour,
		Issuer:         "PURLS-Backend",
	})
	passwordService := auth.NewPasswordServiceWithCost(bcrypt.MinCost)

	srv := NewServer(store, shortener, processor, jwtService, passwordService, log, baseURL, origins)
	return &testEnv{handler: srv.SetupRoutes(), store: store, jwtService: jwtService}
}

func (e *testEnv) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	req.Header.Set("User-Agent", desktopUA)

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	creds := `{"username":"` + username + `","password":"pw1"}`
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/register", creds, "").Code)

	rr := e.do(t, http.MethodPost, "/api/login", creds, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp auth.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) shorten(t *testing.T, token, longURL string) ShortenResponse {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/shorten", `{"longUrl":"`+longURL+`"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp ShortenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func messageOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body auth.MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Message
}

func TestServer_EndToEnd(t *testing.T) {
	log := zap.NewNop()
	parser, err := useragent.NewParser("", log)
	require.NoError(t, err)

	// Процессор пишет в то же хранилище, поэтому создается после окружения
	var processor *analytics.Processor
	env := newTestEnv(t, "http://sho.rt", processorFunc(func(c *analytics.ClickData) error {
		return processor.SubmitClick(c)
	}))
	processor = analytics.NewProcessor(env.store, parser, log, analytics.ProcessorConfig{
		WorkerCount:     1,
		BufferSize:      10,
		RetryAttempts:   1,
		RetryDelay:      time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
		AttemptTimeout:  time.Second,
	})
	require.NoError(t, processor.Start())

	token := env.registerAndLogin(t, "alice")

	created := env.shorten(t, token, "https://example.com")
	assert.GreaterOrEqual(t, len(created.ShortCode), 6)
	assert.Equal(t, "http://sho.rt/"+created.ShortCode, created.ShortURL)

	rr := env.do(t, http.MethodGet, "/"+created.ShortCode, "", "")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com", rr.Header().Get("Location"))

	rr = env.do(t, http.MethodGet, "/api/links", "", token)
	require.Equal(t, http.StatusOK, rr.Code)

	var links []LinkInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &links))
	require.Len(t, links, 1)
	assert.Equal(t, created.ShortCode, links[0].ShortCode)
	assert.Equal(t, "https://example.com", links[0].LongURL)
	assert.Equal(t, int64(1), links[0].ClickCount)
	assert.False(t, links[0].CreatedAt.IsZero())

	require.NoError(t, processor.Stop())

	rr = env.do(t, http.MethodGet, "/api/links/"+created.ShortCode+"/stats", "", token)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.ClickCount)
	assert.Equal(t, map[string]int64{"desktop": 1}, stats.ClicksByDevice)
}

func TestServer_ClickCountAccumulates(t *testing.T) {
	env := newTestEnv(t, "", nil)
	token := env.registerAndLogin(t, "alice")
	created := env.shorten(t, token, "https://example.com/a")

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusFound, env.do(t, http.MethodGet, "/"+created.ShortCode, "", "").Code)
	}

	link, err := env.store.GetLink(t.Context(), created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(5), link.ClickCount)
}

func TestServer_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, "", nil)

	routes := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodPost, "/api/shorten", `{"longUrl":"https://example.com"}`},
		{http.MethodPost, "/api/shorten", ``},
		{http.MethodPost, "/api/shorten", `garbage`},
		{http.MethodGet, "/api/links", ``},
		{http.MethodGet, "/api/links/abc1234/stats", ``},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.target, func(t *testing.T) {
			rr := env.do(t, route.method, route.target, route.body, "")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "No authorization token provided.", messageOf(t, rr))

			rr = env.do(t, route.method, route.target, route.body, "not-a-token")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "Token is not valid.", messageOf(t, rr))
		})
	}
}

func TestServer_UnknownShortCode(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rr := env.do(t, http.MethodGet, "/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "URL not found.", rr.Body.String())
}

func TestServer_ShortenValidation(t *testing.T) {
	env := newTestEnv(t, "", nil)
	token := env.registerAndLogin(t, "alice")

	tests := []struct {
		name        string
		body        string
		expectedMsg string
	}{
		{"missing url", `{}`, "URL is required."},
		{"blank url", `{"longUrl":"   "}`, "URL is required."},
		{"not a url", `{"longUrl":"not a url"}`, "Invalid URL."},
		{"unsupported scheme", `{"longUrl":"ftp://example.com/file"}`, "Invalid URL."},
		{"no host", `{"longUrl":"https://"}`, "Invalid URL."},
		{"malformed json", `{"longUrl":`, "Invalid request format."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/shorten", tt.body, token)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.expectedMsg, messageOf(t, rr))
		})
	}

	rr := env.do(t, http.MethodGet, "/api/links", "", token)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestServer_ShortURLFromRequest(t *testing.T) {
	env := newTestEnv(t, "", nil)
	token := env.registerAndLogin(t, "alice")

	created := env.shorten(t, token, "https://example.com")
	assert.Equal(t, "http://example.com/"+created.ShortCode, created.ShortURL)

	req := httptest.NewRequest(http.MethodPost, "http://short.example/api/shorten", strings.NewReader(`{"longUrl":"https://example.com/b"}`))
	req.Header.Set(auth.TokenHeader, token)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp ShortenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "https://short.example/"+resp.ShortCode, resp.ShortURL)
}

func TestServer_LinksIsolatedAndOrdered(t *testing.T) {
	env := newTestEnv(t, "", nil)
	alice := env.registerAndLogin(t, "alice")
	bob := env.registerAndLogin(t, "bob")

	first := env.shorten(t, alice, "https://example.com/1")
	time.Sleep(time.Millisecond)
	second := env.shorten(t, alice, "https://example.com/2")
	bobs := env.shorten(t, bob, "https://example.com/bob")

	rr := env.do(t, http.MethodGet, "/api/links", "", alice)
	var links []LinkInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &links))
	require.Len(t, links, 2)
	assert.Equal(t, second.ShortCode, links[0].ShortCode)
	assert.Equal(t, first.ShortCode, links[1].ShortCode)

	t.Run("stats of someone else's link", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/links/"+bobs.ShortCode+"/stats", "", alice)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("stats of unknown link", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/links/nope/stats", "", alice)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestServer_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rr := env.do(t, http.MethodGet, "/api/register", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServer_CORS(t *testing.T) {
	t.Run("wildcard preflight", func(t *testing.T) {
		env := newTestEnv(t, "", nil)

		req := httptest.NewRequest(http.MethodOptions, "/api/shorten", nil)
		req.Header.Set("Origin", "http://anywhere.example")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), auth.TokenHeader)
	})

	t.Run("allow list", func(t *testing.T) {
		env := newTestEnv(t, "", nil, "http://localhost:3000")

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rr = httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

type processorFunc func(*analytics.ClickData) error

func (f processorFunc) SubmitClick(c *analytics.ClickData) error { return f(c) }

func (f processorFunc) GetStats() analytics.Stats { return analytics.Stats{} }
