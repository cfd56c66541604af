package repository

import (
	"PURLS-Backend/internal/domain"
	"context"
	"errors"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// Storage описывает хранилище пользователей, ссылок и кликов.
//
// Реализации обязаны:
//   - отклонять повторный short_code с ErrCodeExists;
//   - отклонять ссылку несуществующего владельца с ErrUserNotFound;
//   - увеличивать click_count атомарно, без read-modify-write.
type Storage interface {
	// User methods
	CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	// Link methods
	CreateLink(ctx context.Context, link *domain.Link) error
	GetLink(ctx context.Context, shortCode string) (*domain.Link, error)
	ListUserLinks(ctx context.Context, userID int64) ([]*domain.Link, error)
	// RecordVisit is a no-op when the short code does not exist.
	RecordVisit(ctx context.Context, shortCode string) error

	// Click analytics
	RecordClick(ctx context.Context, click *domain.Click) error
	GetClicksByDevice(ctx context.Context, linkID int64) (map[string]int64, error)

	Ping(ctx context.Context) error
	Close() error
}
