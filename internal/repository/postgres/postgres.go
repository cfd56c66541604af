package postgres

import (
	"PURLS-Backend/internal/database"
	"PURLS-Backend/internal/domain"
	"PURLS-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgresStorage реализует интерфейс Storage для PostgreSQL.
// Ожидает *gorm.DB, открытый с TranslateError: true.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New создает новый экземпляр PostgreSQL storage
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- User Methods ---

// CreateUser создает пользователя; уникальность username гарантирует индекс
func (s *PostgresStorage) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	user := domain.User{
		Username:     username,
		PasswordHash: passwordHash,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, repository.ErrUserExists
		}
		s.log.Error("failed to create user", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("created new user", zap.Int64("user_id", user.ID), zap.String("username", username))
	return &user, nil
}

// GetUserByUsername получает пользователя по имени
func (s *PostgresStorage) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User

	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user by username", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByID получает пользователя по ID
func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User

	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user by id", zap.Int64("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// --- Link Methods ---

// CreateLink сохраняет новую ссылку. Коллизию short_code ловит уникальный индекс,
// отсутствующего владельца - внешний ключ.
func (s *PostgresStorage) CreateLink(ctx context.Context, link *domain.Link) error {
	link.ClickCount = 0

	err := s.db.WithContext(ctx).Omit("User").Create(link).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repository.ErrCodeExists
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return repository.ErrUserNotFound
	default:
		s.log.Error("failed to save link", zap.String("short_code", link.ShortCode), zap.Error(err))
		return fmt.Errorf("failed to save link: %w", err)
	}

	s.log.Info("saved new link", zap.String("short_code", link.ShortCode), zap.Int64("user_id", link.UserID))
	return nil
}

// GetLink получает ссылку по короткому коду
func (s *PostgresStorage) GetLink(ctx context.Context, shortCode string) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).Where("short_code = ?", shortCode).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrLinkNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("short_code", shortCode), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

// ListUserLinks возвращает ссылки пользователя, новые первыми
func (s *PostgresStorage) ListUserLinks(ctx context.Context, userID int64) ([]*domain.Link, error) {
	links := make([]*domain.Link, 0)

	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").Find(&links).Error
	if err != nil {
		s.log.Error("failed to list user links", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list user links: %w", err)
	}

	return links, nil
}

// RecordVisit атомарно увеличивает счетчик кликов одним UPDATE
func (s *PostgresStorage) RecordVisit(ctx context.Context, shortCode string) error {
	err := s.db.WithContext(ctx).Model(&domain.Link{}).
		Where("short_code = ?", shortCode).
		UpdateColumn("click_count", gorm.Expr("click_count + 1")).Error
	if err != nil {
		s.log.Error("failed to update click count", zap.String("short_code", shortCode), zap.Error(err))
		return fmt.Errorf("failed to update click count: %w", err)
	}
	return nil
}

// --- Click Methods ---

// RecordClick записывает детали перехода
func (s *PostgresStorage) RecordClick(ctx context.Context, click *domain.Click) error {
	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now()
	}

	err := s.db.WithContext(ctx).Omit("Link").Create(click).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return repository.ErrLinkNotFound
	}
	if err != nil {
		s.log.Error("failed to create click record", zap.Int64("link_id", click.LinkID), zap.Error(err))
		return fmt.Errorf("failed to create click: %w", err)
	}

	return nil
}

// GetClicksByDevice возвращает статистику кликов по типам устройств для ссылки
func (s *PostgresStorage) GetClicksByDevice(ctx context.Context, linkID int64) (map[string]int64, error) {
	var results []struct {
		DeviceType string `gorm:"column:device_type"`
		Count      int64  `gorm:"column:count"`
	}

	err := s.db.WithContext(ctx).
		Model(&domain.Click{}).
		Select("COALESCE(device_type, 'unknown') as device_type, count(*) as count").
		Where("link_id = ?", linkID).
		Group("COALESCE(device_type, 'unknown')").
		Find(&results).Error

	if err != nil {
		s.log.Error("failed to get clicks by device", zap.Int64("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("failed to get clicks by device: %w", err)
	}

	clicksByDevice := make(map[string]int64)
	for _, result := range results {
		clicksByDevice[result.DeviceType] = result.Count
	}

	return clicksByDevice, nil
}

// Ping проверяет доступность базы данных
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return database.HealthCheck(ctx, s.db)
}

// Close закрывает пул соединений
func (s *PostgresStorage) Close() error {
	return database.Close(s.db, s.log)
}
