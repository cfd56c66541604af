package memory

import (
	"PURLS-Backend/internal/domain"
	"PURLS-Backend/internal/repository"
	"context"
	"sort"
	"sync"
	"time"
)

// MemStorage keeps everything in process memory. Used by tests and the
// "memory" database driver.
type MemStorage struct {
	mu          sync.RWMutex
	links       map[string]*domain.Link
	users       map[int64]*domain.User
	usersByName map[string]int64
	clicks      []*domain.Click
	userCounter int64
	linkCounter int64
	clickSeq    int64
	now         func() time.Time
}

func New() *MemStorage {
	return &MemStorage{
		links:       make(map[string]*domain.Link),
		users:       make(map[int64]*domain.User),
		usersByName: make(map[string]int64),
		now:         time.Now,
	}
}

// --- User Methods ---

func (s *MemStorage) CreateUser(_ context.Context, username, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[username]; exists {
		return nil, repository.ErrUserExists
	}

	s.userCounter++
	user := &domain.User{
		ID:           s.userCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	s.users[user.ID] = user
	s.usersByName[username] = user.ID

	cp := *user
	return &cp, nil
}

func (s *MemStorage) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByName[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemStorage) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// --- Link Methods ---

func (s *MemStorage) CreateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.ShortCode]; exists {
		return repository.ErrCodeExists
	}
	if _, ok := s.users[link.UserID]; !ok {
		return repository.ErrUserNotFound
	}

	s.linkCounter++
	link.ID = s.linkCounter
	link.ClickCount = 0
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now()
	}

	stored := *link
	s.links[link.ShortCode] = &stored
	return nil
}

func (s *MemStorage) GetLink(_ context.Context, shortCode string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[shortCode]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *MemStorage) ListUserLinks(_ context.Context, userID int64) ([]*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userLinks := make([]*domain.Link, 0)
	for _, link := range s.links {
		if link.UserID == userID {
			cp := *link
			userLinks = append(userLinks, &cp)
		}
	}

	sort.Slice(userLinks, func(i, j int) bool {
		if userLinks[i].CreatedAt.Equal(userLinks[j].CreatedAt) {
			return userLinks[i].ID > userLinks[j].ID
		}
		return userLinks[i].CreatedAt.After(userLinks[j].CreatedAt)
	})

	return userLinks, nil
}

func (s *MemStorage) RecordVisit(_ context.Context, shortCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link, ok := s.links[shortCode]; ok {
		link.ClickCount++
	}
	return nil
}

// --- Click Methods ---

func (s *MemStorage) RecordClick(_ context.Context, click *domain.Click) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, link := range s.links {
		if link.ID == click.LinkID {
			found = true
			break
		}
	}
	if !found {
		return repository.ErrLinkNotFound
	}

	s.clickSeq++
	click.ID = s.clickSeq
	if click.ClickedAt.IsZero() {
		click.ClickedAt = s.now()
	}
	cp := *click
	s.clicks = append(s.clicks, &cp)
	return nil
}

func (s *MemStorage) GetClicksByDevice(_ context.Context, linkID int64) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clicksByDevice := make(map[string]int64)
	for _, click := range s.clicks {
		if click.LinkID == linkID {
			clicksByDevice[click.GetDeviceType()]++
		}
	}
	return clicksByDevice, nil
}

func (s *MemStorage) Ping(_ context.Context) error {
	return nil
}

func (s *MemStorage) Close() error {
	return nil
}
