package http

import (
	"PURLS-Backend/internal/auth"
	"PURLS-Backend/internal/domain"
	"PURLS-Backend/internal/repository"
	"PURLS-Backend/internal/service"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LinksHandler обработчик для работы со ссылками
type LinksHandler struct {
	urlShortener *service.URLShortenerService
	log          *zap.Logger
	baseURL      string
}

// NewLinksHandler создает новый обработчик ссылок.
// Пустой baseURL означает, что адрес берется из запроса.
func NewLinksHandler(urlShortener *service.URLShortenerService, log *zap.Logger, baseURL string) *LinksHandler {
	return &LinksHandler{
		urlShortener: urlShortener,
		log:          log,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// ShortenRequest структура запроса создания ссылки
type ShortenRequest struct {
	LongURL string `json:"longUrl"`
}

// ShortenResponse структура ответа создания ссылки
type ShortenResponse struct {
	ShortCode string `json:"shortCode"`
	ShortURL  string `json:"shortUrl"`
}

// LinkInfo информация о ссылке
type LinkInfo struct {
	ShortCode  string    `json:"short_code"`
	LongURL    string    `json:"long_url"`
	ClickCount int64     `json:"click_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatsResponse структура ответа статистики
type StatsResponse struct {
	LinkInfo
	ClicksByDevice map[string]int64 `json:"clicks_by_device"`
}

// Shorten создает новую короткую ссылку
//
//	@Summary		Shorten a URL
//	@Description	Create a short code for a long URL owned by the caller
//	@Tags			Links
//	@Accept			json
//	@Produce		json
//	@Security		TokenAuth
//	@Param			request	body		ShortenRequest			true	"URL to shorten"
//	@Success		201		{object}	ShortenResponse			"Link created"
//	@Failure		400		{object}	auth.MessageResponse	"Invalid URL"
//	@Failure		401		{object}	auth.MessageResponse	"Authentication required"
//	@Failure		500		{object}	auth.MessageResponse	"Error shortening URL"
//	@Router			/api/shorten [post]
func (h *LinksHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, "Token is not valid.", http.StatusUnauthorized)
		return
	}

	var req ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid shorten request", zap.Error(err))
		h.writeError(w, "Invalid request format.", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.LongURL) == "" {
		h.writeError(w, "URL is required.", http.StatusBadRequest)
		return
	}

	link, err := h.urlShortener.Shorten(r.Context(), userID, req.LongURL)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			h.writeError(w, "Invalid URL.", http.StatusBadRequest)
			return
		}
		h.log.Error("failed to shorten url", zap.Int64("user_id", userID), zap.Error(err))
		h.writeError(w, "Error shortening URL.", http.StatusInternalServerError)
		return
	}

	response := ShortenResponse{
		ShortCode: link.ShortCode,
		ShortURL:  h.shortURL(r, link.ShortCode),
	}

	h.log.Info("created link", zap.String("short_code", link.ShortCode), zap.Int64("user_id", userID))
	h.writeJSON(w, response, http.StatusCreated)
}

// ListLinks возвращает список ссылок пользователя
//
//	@Summary		List my links
//	@Description	Links owned by the caller, most recent first
//	@Tags			Links
//	@Produce		json
//	@Security		TokenAuth
//	@Success		200	{array}		LinkInfo				"Links"
//	@Failure		401	{object}	auth.MessageResponse	"Authentication required"
//	@Failure		500	{object}	auth.MessageResponse	"Error fetching links"
//	@Router			/api/links [get]
func (h *LinksHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, "Token is not valid.", http.StatusUnauthorized)
		return
	}

	links, err := h.urlShortener.ListLinks(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to list links", zap.Int64("user_id", userID), zap.Error(err))
		h.writeError(w, "Error fetching links.", http.StatusInternalServerError)
		return
	}

	response := make([]LinkInfo, 0, len(links))
	for _, link := range links {
		response = append(response, toLinkInfo(link))
	}

	h.writeJSON(w, response, http.StatusOK)
}

// Stats возвращает статистику по ссылке
//
//	@Summary		Link statistics
//	@Description	Click count and clicks by device for a link owned by the caller
//	@Tags			Links
//	@Produce		json
//	@Security		TokenAuth
//	@Param			shortCode	path		string					true	"Short code"
//	@Success		200			{object}	StatsResponse			"Statistics"
//	@Failure		401			{object}	auth.MessageResponse	"Authentication required"
//	@Failure		403			{object}	auth.MessageResponse	"Not the owner"
//	@Failure		404			{object}	auth.MessageResponse	"Link not found"
//	@Router			/api/links/{shortCode}/stats [get]
func (h *LinksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, "Token is not valid.", http.StatusUnauthorized)
		return
	}

	shortCode := r.PathValue("shortCode")
	stats, err := h.urlShortener.Stats(r.Context(), userID, shortCode)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			h.writeError(w, "Link not found.", http.StatusNotFound)
		case errors.Is(err, service.ErrAccessDenied):
			h.writeError(w, "Access denied.", http.StatusForbidden)
		default:
			h.log.Error("failed to get link stats", zap.String("short_code", shortCode), zap.Error(err))
			h.writeError(w, "Error fetching link stats.", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, StatsResponse{
		LinkInfo:       toLinkInfo(stats.Link),
		ClicksByDevice: stats.ClicksByDevice,
	}, http.StatusOK)
}

// shortURL строит полный короткий адрес из BASE_URL или из самого запроса
func (h *LinksHandler) shortURL(r *http.Request, code string) string {
	if h.baseURL != "" {
		return h.baseURL + "/" + code
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/" + code
}

func toLinkInfo(link *domain.Link) LinkInfo {
	return LinkInfo{
		ShortCode:  link.ShortCode,
		LongURL:    link.LongURL,
		ClickCount: link.ClickCount,
		CreatedAt:  link.CreatedAt,
	}
}

func (h *LinksHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (h *LinksHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, auth.MessageResponse{Message: message}, statusCode)
}
