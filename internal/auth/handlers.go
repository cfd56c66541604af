package auth

import (
	"PURLS-Backend/internal/repository"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
)

// AuthHandlers обработчики аутентификации
type AuthHandlers struct {
	storage         repository.Storage
	jwtService      *JWTService
	passwordService *PasswordService
	log             *zap.Logger
}

// NewAuthHandlers создает новые обработчики аутентификации
func NewAuthHandlers(storage repository.Storage, jwtService *JWTService, passwordService *PasswordService, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		storage:         storage,
		jwtService:      jwtService,
		passwordService: passwordService,
		log:             log,
	}
}

// Credentials тело запросов регистрации и входа
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse структура ответа входа
type TokenResponse struct {
	Token string `json:"token"`
}

// Register обработчик регистрации
//
//	@Summary		Register a new user
//	@Description	Create a new user account. No token is issued; call login afterwards.
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		Credentials		true	"Registration request"
//	@Success		201		{object}	MessageResponse	"User registered successfully"
//	@Failure		400		{object}	MessageResponse	"Invalid request or user already exists"
//	@Router			/api/register [post]
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid registration request", zap.Error(err))
		writeMessage(w, "Invalid request format.", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeMessage(w, "Username and password are required.", http.StatusBadRequest)
		return
	}
	if n := utf8.RuneCountInString(req.Username); n < minUsernameLength || n > maxUsernameLength {
		writeMessage(w, "Username must be between 3 and 64 characters.", http.StatusBadRequest)
		return
	}

	// Проверяем, не существует ли уже пользователь с таким именем
	_, err := h.storage.GetUserByUsername(r.Context(), req.Username)
	switch {
	case err == nil:
		writeMessage(w, "User already exists", http.StatusBadRequest)
		return
	case !errors.Is(err, repository.ErrUserNotFound):
		h.log.Error("failed to look up user", zap.String("username", req.Username), zap.Error(err))
		writeMessage(w, "Server error during registration.", http.StatusInternalServerError)
		return
	}

	// Хешируем пароль
	hashedPassword, err := h.passwordService.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			writeMessage(w, "Password must be no more than 72 bytes long.", http.StatusBadRequest)
			return
		}
		h.log.Error("failed to hash password", zap.Error(err))
		writeMessage(w, "Server error during registration.", http.StatusInternalServerError)
		return
	}

	// Создаем пользователя; уникальный индекс закрывает гонку двух регистраций
	user, err := h.storage.CreateUser(r.Context(), req.Username, hashedPassword)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			writeMessage(w, "User already exists", http.StatusBadRequest)
			return
		}
		h.log.Error("failed to create user", zap.String("username", req.Username), zap.Error(err))
		writeMessage(w, "Server error during registration.", http.StatusInternalServerError)
		return
	}

	h.log.Info("user registered successfully", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	writeMessage(w, "User registered successfully", http.StatusCreated)
}

// Login обработчик входа
//
//	@Summary		Login user
//	@Description	Authenticate and receive a signed token valid for 5 hours
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		Credentials		true	"Login request"
//	@Success		200		{object}	TokenResponse	"Login successful"
//	@Failure		400		{object}	MessageResponse	"Invalid Credentials"
//	@Router			/api/login [post]
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid login request", zap.Error(err))
		writeMessage(w, "Invalid request format.", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	// Находим пользователя
	user, err := h.storage.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.log.Debug("user not found for login", zap.String("username", req.Username))
			writeMessage(w, "Invalid Credentials", http.StatusBadRequest)
			return
		}
		h.log.Error("failed to look up user", zap.String("username", req.Username), zap.Error(err))
		writeMessage(w, "Server error during login.", http.StatusInternalServerError)
		return
	}

	// Проверяем пароль
	if err := h.passwordService.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			h.log.Error("failed to verify password", zap.Int64("user_id", user.ID), zap.Error(err))
		}
		h.log.Debug("invalid password for user", zap.String("username", req.Username))
		writeMessage(w, "Invalid Credentials", http.StatusBadRequest)
		return
	}

	token, err := h.jwtService.GenerateAccessToken(user.ID)
	if err != nil {
		h.log.Error("failed to generate access token", zap.Error(err))
		writeMessage(w, "Server error during login.", http.StatusInternalServerError)
		return
	}

	h.log.Info("user logged in successfully", zap.Int64("user_id", user.ID))
	writeJSON(w, TokenResponse{Token: token}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
