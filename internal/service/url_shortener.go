package service

import (
	"PURLS-Backend/internal/config"
	"PURLS-Backend/internal/domain"
	"PURLS-Backend/internal/repository"
	"PURLS-Backend/pkg/random"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const maxURLLength = 2048

// reservedCodes совпадают с публичными маршрутами и перекрыли бы редирект
var reservedCodes = map[string]struct{}{
	"api":     {},
	"health":  {},
	"ready":   {},
	"metrics": {},
	"swagger": {},
}

// IsReservedCode reports whether code collides with a fixed top-level route.
func IsReservedCode(code string) bool {
	_, ok := reservedCodes[code]
	return ok
}

var (
	ErrInvalidURL    = errors.New("invalid url")
	ErrAccessDenied  = errors.New("access denied")
	ErrCodeSpaceFull = errors.New("unable to generate unique short code")
)

// CodeGenerator returns a random short code of the given length.
type CodeGenerator func(length int) (string, error)

// LinkStats is a link together with its click breakdown.
type LinkStats struct {
	Link           *domain.Link
	ClicksByDevice map[string]int64
}

type URLShortenerService struct {
	storage  repository.Storage
	config   *config.URLShortener
	generate CodeGenerator
	log      *zap.Logger
}

func NewURLShortener(storage repository.Storage, cfg *config.URLShortener, log *zap.Logger) *URLShortenerService {
	return NewURLShortenerWithGenerator(storage, cfg, random.NewRandomString, log)
}

// NewURLShortenerWithGenerator allows a deterministic generator in tests.
func NewURLShortenerWithGenerator(storage repository.Storage, cfg *config.URLShortener, gen CodeGenerator, log *zap.Logger) *URLShortenerService {
	return &URLShortenerService{
		storage:  storage,
		config:   cfg,
		generate: gen,
		log:      log,
	}
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	if len(raw) > maxURLLength {
		return fmt.Errorf("%w: URL exceeds %d characters", ErrInvalidURL, maxURLLength)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: malformed URL", ErrInvalidURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: URL scheme must be http or https", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: URL must have a host", ErrInvalidURL)
	}
	return nil
}

// Shorten creates a link owned by userID. The storage unique index is the
// source of truth for collisions; on ErrCodeExists a fresh code is drawn.
func (s *URLShortenerService) Shorten(ctx context.Context, userID int64, longURL string) (*domain.Link, error) {
	longURL = strings.TrimSpace(longURL)
	if err := ValidateURL(longURL); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		code, err := s.generate(s.config.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate short code: %w", err)
		}
		if IsReservedCode(code) {
			s.log.Warn("generated reserved short code, regenerating", zap.String("short_code", code))
			continue
		}

		link := &domain.Link{
			ShortCode: code,
			LongURL:   longURL,
			UserID:    userID,
		}

		err = s.storage.CreateLink(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, repository.ErrCodeExists) {
			return nil, fmt.Errorf("failed to save link: %w", err)
		}

		s.log.Warn("short code collision, regenerating",
			zap.String("short_code", code),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.config.MaxRetries))
	}

	return nil, ErrCodeSpaceFull
}

// ListLinks returns the user's links, most recent first.
func (s *URLShortenerService) ListLinks(ctx context.Context, userID int64) ([]*domain.Link, error) {
	links, err := s.storage.ListUserLinks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// Visit resolves a short code and counts the visit. The returned link
// reflects the count after this visit.
func (s *URLShortenerService) Visit(ctx context.Context, shortCode string) (*domain.Link, error) {
	link, err := s.storage.GetLink(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	if err := s.storage.RecordVisit(ctx, shortCode); err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}
	link.ClickCount++

	return link, nil
}

// Stats returns click details for a link owned by userID.
func (s *URLShortenerService) Stats(ctx context.Context, userID int64, shortCode string) (*LinkStats, error) {
	link, err := s.storage.GetLink(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	if !link.IsOwnedBy(userID) {
		return nil, ErrAccessDenied
	}

	clicksByDevice, err := s.storage.GetClicksByDevice(ctx, link.ID)
	if err != nil {
		s.log.Error("failed to get clicks by device", zap.Int64("link_id", link.ID), zap.Error(err))
		clicksByDevice = make(map[string]int64)
	}

	return &LinkStats{Link: link, ClicksByDevice: clicksByDevice}, nil
}
