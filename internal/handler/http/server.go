package http

import (
	"PURLS-Backend/internal/analytics"
	"PURLS-Backend/internal/auth"
	"PURLS-Backend/internal/repository"
	"PURLS-Backend/internal/service"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// ClickProcessor принимает данные о кликах для асинхронной записи
type ClickProcessor interface {
	SubmitClick(clickData *analytics.ClickData) error
	GetStats() analytics.Stats
}

// Server HTTP сервер с обработчиками
type Server struct {
	authHandlers    *auth.AuthHandlers
	linksHandler    *LinksHandler
	redirectHandler *RedirectHandler
	healthHandler   *HealthHandler
	authMiddleware  *auth.Middleware
	allowedOrigins  []string
	log             *zap.Logger
}

// NewServer создает новый HTTP сервер.
// processor может быть nil, если аналитика отключена.
func NewServer(
	storage repository.Storage,
	urlShortener *service.URLShortenerService,
	processor ClickProcessor,
	jwtService *auth.JWTService,
	passwordService *auth.PasswordService,
	log *zap.Logger,
	baseURL string,
	allowedOrigins []string,
) *Server {
	return &Server{
		authHandlers:    auth.NewAuthHandlers(storage, jwtService, passwordService, log),
		linksHandler:    NewLinksHandler(urlShortener, log, baseURL),
		redirectHandler: NewRedirectHandler(urlShortener, processor, log),
		healthHandler:   NewHealthHandler(storage, processor, log),
		authMiddleware:  auth.NewMiddleware(jwtService, log),
		allowedOrigins:  allowedOrigins,
		log:             log,
	}
}

// SetupRoutes настраивает маршруты
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health checks (без аутентификации)
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.HandleFunc("GET /metrics", s.healthHandler.Metrics)

	// Swagger документация
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Auth endpoints (без аутентификации)
	mux.HandleFunc("POST /api/register", s.authHandlers.Register)
	mux.HandleFunc("POST /api/login", s.authHandlers.Login)

	// API endpoints (с аутентификацией)
	mux.HandleFunc("POST /api/shorten", s.authMiddleware.RequireAuth(s.linksHandler.Shorten))
	mux.HandleFunc("GET /api/links", s.authMiddleware.RequireAuth(s.linksHandler.ListLinks))
	mux.HandleFunc("GET /api/links/{shortCode}/stats", s.authMiddleware.RequireAuth(s.linksHandler.Stats))

	// Redirect endpoint (без аутентификации), один сегмент пути
	mux.HandleFunc("GET /{shortCode}", s.redirectHandler.HandleRedirect)

	return RequestLogger(s.log)(CORS(s.allowedOrigins)(mux))
}
