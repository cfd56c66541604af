package http

import (
	"PURLS-Backend/internal/analytics"
	"PURLS-Backend/internal/repository"
	"PURLS-Backend/internal/service"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RedirectHandler обработчик редиректов
type RedirectHandler struct {
	urlShortener *service.URLShortenerService
	processor    ClickProcessor
	log          *zap.Logger
}

// NewRedirectHandler создает новый обработчик редиректов
func NewRedirectHandler(urlShortener *service.URLShortenerService, processor ClickProcessor, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		urlShortener: urlShortener,
		processor:    processor,
		log:          log,
	}
}

// HandleRedirect обрабатывает редирект по короткому коду
//
//	@Summary		Follow a short link
//	@Description	Counts the visit and redirects to the original URL
//	@Tags			Redirect
//	@Produce		plain
//	@Param			shortCode	path	string	true	"Short code"
//	@Success		302			{string}	string	"Redirect to the original URL"
//	@Failure		404			{string}	string	"URL not found."
//	@Router			/{shortCode} [get]
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	shortCode := r.PathValue("shortCode")

	link, err := h.urlShortener.Visit(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			h.log.Debug("short code not found", zap.String("short_code", shortCode))
			writeText(w, "URL not found.", http.StatusNotFound)
			return
		}
		h.log.Error("failed to process redirect", zap.String("short_code", shortCode), zap.Error(err))
		writeText(w, "Server error during redirect.", http.StatusInternalServerError)
		return
	}

	if h.processor != nil {
		clickData := &analytics.ClickData{
			LinkID:    link.ID,
			ShortCode: link.ShortCode,
			IPAddress: optional(extractIPAddress(r)),
			UserAgent: optional(r.UserAgent()),
			Referer:   optional(r.Referer()),
			ClickedAt: time.Now().UTC(),
		}
		// Счетчик уже увеличен, потеря деталей клика не мешает редиректу
		if err := h.processor.SubmitClick(clickData); err != nil {
			h.log.Warn("click details dropped", zap.String("short_code", shortCode), zap.Error(err))
		}
	}

	h.log.Debug("successful redirect",
		zap.String("short_code", shortCode),
		zap.Int64("click_count", link.ClickCount))

	http.Redirect(w, r, link.LongURL, http.StatusFound)
}

// extractIPAddress извлекает IP адрес из запроса с учетом прокси.
// Значения заголовков, которые не являются IP, игнорируются.
func extractIPAddress(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		// X-Forwarded-For может содержать список IP через запятую
		first, _, _ := strings.Cut(header, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return parseIP(host)
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeText(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	w.Write([]byte(message))
}
