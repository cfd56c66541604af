package auth

import (
	"PURLS-Backend/internal/repository/memory"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func setupAuthHandlers() (*AuthHandlers, *memory.MemStorage, *JWTService) {
	store := memory.New()
	jwtService := newTestJWTService()
	h := NewAuthHandlers(store, jwtService, NewPasswordServiceWithCost(bcrypt.MinCost), zap.NewNop())
	return h, store, jwtService
}

func doJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Message
}

func TestAuthHandlers_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h, store, _ := setupAuthHandlers()

		rr := doJSON(t, h.Register, `{"username":"alice","password":"pw1"}`)
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "User registered successfully", decodeMessage(t, rr))
		assert.NotContains(t, rr.Body.String(), "token")

		user, err := store.GetUserByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.NotEqual(t, "pw1", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw1")))
	})

	t.Run("duplicate", func(t *testing.T) {
		h, _, _ := setupAuthHandlers()

		require.Equal(t, http.StatusCreated, doJSON(t, h.Register, `{"username":"alice","password":"pw1"}`).Code)
		rr := doJSON(t, h.Register, `{"username":"alice","password":"other"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "User already exists", decodeMessage(t, rr))
	})

	invalid := []struct {
		name string
		body string
	}{
		{"malformed json", `{"username":`},
		{"missing password", `{"username":"alice"}`},
		{"missing username", `{"password":"pw1"}`},
		{"blank username", `{"username":"   ","password":"pw1"}`},
		{"short username", `{"username":"al","password":"pw1"}`},
		{"long password", `{"username":"alice","password":"` + strings.Repeat("x", 73) + `"}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := setupAuthHandlers()
			rr := doJSON(t, h.Register, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decodeMessage(t, rr))
		})
	}
}

func TestAuthHandlers_Login(t *testing.T) {
	h, _, jwtService := setupAuthHandlers()
	require.Equal(t, http.StatusCreated, doJSON(t, h.Register, `{"username":"alice","password":"pw1"}`).Code)

	t.Run("success", func(t *testing.T) {
		rr := doJSON(t, h.Login, `{"username":"alice","password":"pw1"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var body TokenResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.NotEmpty(t, body.Token)

		claims, err := jwtService.ValidateToken(body.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(1), claims.User.ID)
	})

	failures := []struct {
		name string
		body string
	}{
		{"wrong password", `{"username":"alice","password":"pw2"}`},
		{"unknown user", `{"username":"bob","password":"pw1"}`},
		{"empty password", `{"username":"alice","password":""}`},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h.Login, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "Invalid Credentials", decodeMessage(t, rr))
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		rr := doJSON(t, h.Login, `nope`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
