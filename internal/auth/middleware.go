package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// TokenHeader заголовок, в котором клиент передает токен
const TokenHeader = "x-auth-token"

// ContextKey тип для ключей контекста
type ContextKey string

// UserIDKey ключ для получения ID пользователя из контекста
const UserIDKey ContextKey = "user_id"

// Middleware JWT middleware для HTTP обработчиков
type Middleware struct {
	jwtService *JWTService
	log        *zap.Logger
}

// NewMiddleware создает новый JWT middleware
func NewMiddleware(jwtService *JWTService, log *zap.Logger) *Middleware {
	return &Middleware{
		jwtService: jwtService,
		log:        log,
	}
}

// RequireAuth пропускает запрос дальше только с валидным токеном.
// Токен берется из x-auth-token, затем из Authorization: Bearer.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			m.log.Debug("missing auth token", zap.String("path", r.URL.Path))
			writeMessage(w, "No authorization token provided.", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.log.Debug("token verification failed", zap.String("path", r.URL.Path), zap.Error(err))
			writeMessage(w, "Token is not valid.", http.StatusUnauthorized)
			return
		}

		// Добавляем информацию о пользователе в контекст
		ctx := WithUserID(r.Context(), claims.User.ID)

		m.log.Debug("authenticated user", zap.Int64("user_id", claims.User.ID))

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(TokenHeader); token != "" {
		return token
	}
	return ExtractTokenFromBearer(r.Header.Get("Authorization"))
}

// WithUserID кладет ID пользователя в контекст
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserIDFromContext извлекает ID пользователя из контекста
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

// MessageResponse тело ответа с сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(MessageResponse{Message: message})
}
