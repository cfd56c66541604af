// Package sqlite implements repository.Storage on top of database/sql for
// local SQLite files (modernc.org/sqlite) and remote libSQL/Turso databases.
package sqlite

import (
	"PURLS-Backend/internal/domain"
	"PURLS-Backend/internal/repository"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"go.uber.org/zap"
	sqlitedrv "modernc.org/sqlite" // Local SQLite driver
	sqlite3 "modernc.org/sqlite/lib"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		short_code TEXT NOT NULL UNIQUE,
		long_url TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		click_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_user_created ON links(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS clicks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_id INTEGER NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		ip_address TEXT,
		user_agent TEXT,
		referer TEXT,
		device_type TEXT,
		browser TEXT,
		os TEXT,
		clicked_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clicks_link_id ON clicks(link_id)`,
}

// Storage is a SQL-backed repository.Storage.
type Storage struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens the database at dbURL and applies the schema.
// libsql:// and wss:// URLs go through the libSQL client, anything else is
// treated as a local SQLite DSN (":memory:", "file:app.db", ...).
func New(dbURL string, log *zap.Logger) (*Storage, error) {
	driverName := "sqlite"
	if strings.HasPrefix(dbURL, "libsql://") || strings.HasPrefix(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}

	if driverName == "sqlite" {
		// Single writer. Also keeps ":memory:" databases alive across calls.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	log.Info("sql storage ready", zap.String("driver", driverName))
	return &Storage{db: db, log: log}, nil
}

// --- User Methods ---

func (s *Storage) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, now.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrUserExists
		}
		s.log.Error("failed to create user", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}

	return &domain.User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return s.scanUser(row, zap.String("username", username))
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return s.scanUser(row, zap.Int64("user_id", id))
}

func (s *Storage) scanUser(row *sql.Row, field zap.Field) (*domain.User, error) {
	var (
		user      domain.User
		createdAt int64
	)
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user", field, zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	return &user, nil
}

// --- Link Methods ---

// CreateLink inserts the link only if its owner exists, in one statement.
func (s *Storage) CreateLink(ctx context.Context, link *domain.Link) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO links (short_code, long_url, user_id, click_count, created_at)
		 SELECT ?, ?, ?, 0, ? WHERE EXISTS (SELECT 1 FROM users WHERE id = ?)`,
		link.ShortCode, link.LongURL, link.UserID, link.CreatedAt.UnixNano(), link.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrCodeExists
		}
		s.log.Error("failed to save link", zap.String("short_code", link.ShortCode), zap.Error(err))
		return fmt.Errorf("failed to save link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}
	if affected == 0 {
		return repository.ErrUserNotFound
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read link id: %w", err)
	}
	link.ID = id
	link.ClickCount = 0

	s.log.Info("saved new link", zap.String("short_code", link.ShortCode), zap.Int64("user_id", link.UserID))
	return nil
}

func (s *Storage) GetLink(ctx context.Context, shortCode string) (*domain.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, short_code, long_url, user_id, click_count, created_at FROM links WHERE short_code = ?`,
		shortCode)

	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrLinkNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("short_code", shortCode), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

func (s *Storage) ListUserLinks(ctx context.Context, userID int64) ([]*domain.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, short_code, long_url, user_id, click_count, created_at
		 FROM links WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		s.log.Error("failed to list user links", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list user links: %w", err)
	}
	defer rows.Close()

	links := make([]*domain.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}

	return links, nil
}

func (s *Storage) RecordVisit(ctx context.Context, shortCode string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE links SET click_count = click_count + 1 WHERE short_code = ?`, shortCode)
	if err != nil {
		s.log.Error("failed to update click count", zap.String("short_code", shortCode), zap.Error(err))
		return fmt.Errorf("failed to update click count: %w", err)
	}
	return nil
}

// --- Click Methods ---

func (s *Storage) RecordClick(ctx context.Context, click *domain.Click) error {
	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO clicks (link_id, ip_address, user_agent, referer, device_type, browser, os, clicked_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM links WHERE id = ?)`,
		click.LinkID, click.IPAddress, click.UserAgent, click.Referer,
		click.DeviceType, click.Browser, click.OS, click.ClickedAt.UnixNano(), click.LinkID)
	if err != nil {
		s.log.Error("failed to create click record", zap.Int64("link_id", click.LinkID), zap.Error(err))
		return fmt.Errorf("failed to create click: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create click: %w", err)
	}
	if affected == 0 {
		return repository.ErrLinkNotFound
	}

	if id, err := res.LastInsertId(); err == nil {
		click.ID = id
	}
	return nil
}

func (s *Storage) GetClicksByDevice(ctx context.Context, linkID int64) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(device_type, 'unknown'), COUNT(*) FROM clicks WHERE link_id = ? GROUP BY 1`, linkID)
	if err != nil {
		s.log.Error("failed to get clicks by device", zap.Int64("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("failed to get clicks by device: %w", err)
	}
	defer rows.Close()

	clicksByDevice := make(map[string]int64)
	for rows.Next() {
		var (
			device string
			count  int64
		)
		if err := rows.Scan(&device, &count); err != nil {
			return nil, fmt.Errorf("failed to scan clicks by device: %w", err)
		}
		clicksByDevice[device] = count
	}
	return clicksByDevice, rows.Err()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.log.Info("sql storage closed")
	return nil
}

// --- Helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var (
		link      domain.Link
		createdAt int64
	)
	if err := row.Scan(&link.ID, &link.ShortCode, &link.LongURL, &link.UserID, &link.ClickCount, &createdAt); err != nil {
		return nil, err
	}
	link.CreatedAt = time.Unix(0, createdAt).UTC()
	return &link, nil
}

// isUniqueViolation recognises UNIQUE/PRIMARY KEY failures from both the
// modernc driver and the libSQL client (which only exposes the message).
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlitedrv.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
