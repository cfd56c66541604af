// Package storagetest holds the behavioural contract every repository.Storage
// implementation must satisfy. Store packages call Run from their tests.
package storagetest

import (
	"PURLS-Backend/internal/domain"
	"PURLS-Backend/internal/repository"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty storage for a single subtest.
type Factory func(t *testing.T) repository.Storage

// Run executes the storage contract against the given factory.
func Run(t *testing.T, newStorage Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStorage(t)) })
	t.Run("create_link", func(t *testing.T) { testCreateLink(t, newStorage(t)) })
	t.Run("list_user_links", func(t *testing.T) { testListUserLinks(t, newStorage(t)) })
	t.Run("record_visit", func(t *testing.T) { testRecordVisit(t, newStorage(t)) })
	t.Run("record_visit_concurrent", func(t *testing.T) { testRecordVisitConcurrent(t, newStorage(t)) })
	t.Run("clicks", func(t *testing.T) { testClicks(t, newStorage(t)) })
	t.Run("clicks_oversized_headers", func(t *testing.T) { testOversizedClick(t, newStorage(t)) })
}

// testOversizedClick checks that a truncated click fits every store's columns.
func testOversizedClick(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	owner, err := s.CreateUser(ctx, "owner", "hash")
	require.NoError(t, err)
	link := &domain.Link{ShortCode: "wide123", LongURL: "https://example.com", UserID: owner.ID}
	require.NoError(t, s.CreateLink(ctx, link))

	ip := strings.Repeat("f", 100)
	referer := "https://ref.example/" + strings.Repeat("r", 600)
	device := domain.DeviceMobile
	browser := strings.Repeat("b", 80)
	osName := strings.Repeat("o", 80)
	userAgent := strings.Repeat("u", 2000)

	click := &domain.Click{
		LinkID:     link.ID,
		IPAddress:  &ip,
		UserAgent:  &userAgent,
		Referer:    &referer,
		DeviceType: &device,
		Browser:    &browser,
		OS:         &osName,
	}
	click.Truncate()
	require.NoError(t, s.RecordClick(ctx, click))

	byDevice, err := s.GetClicksByDevice(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byDevice[domain.DeviceMobile])
}

func testUsers(t *testing.T, s repository.Storage) {
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "hash1")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)

	_, err = s.CreateUser(ctx, "alice", "hash2")
	assert.ErrorIs(t, err, repository.ErrUserExists)

	found, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "hash1", found.PasswordHash)

	byID, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = s.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = s.GetUserByID(ctx, user.ID+1000)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func testCreateLink(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	owner, err := s.CreateUser(ctx, "owner", "hash")
	require.NoError(t, err)

	link := &domain.Link{ShortCode: "abc1234", LongURL: "https://example.com", UserID: owner.ID}
	require.NoError(t, s.CreateLink(ctx, link))
	assert.NotZero(t, link.ID)
	assert.False(t, link.CreatedAt.IsZero())

	got, err := s.GetLink(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.LongURL)
	assert.Equal(t, owner.ID, got.UserID)
	assert.Equal(t, int64(0), got.ClickCount)

	t.Run("duplicate_code", func(t *testing.T) {
		dup := &domain.Link{ShortCode: "abc1234", LongURL: "https://other.example", UserID: owner.ID}
		assert.ErrorIs(t, s.CreateLink(ctx, dup), repository.ErrCodeExists)

		got, err := s.GetLink(ctx, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", got.LongURL)
	})

	t.Run("unknown_owner", func(t *testing.T) {
		orphan := &domain.Link{ShortCode: "zzz9999", LongURL: "https://example.com", UserID: owner.ID + 1000}
		assert.ErrorIs(t, s.CreateLink(ctx, orphan), repository.ErrUserNotFound)

		_, err := s.GetLink(ctx, "zzz9999")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := s.GetLink(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	})
}

func testListUserLinks(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)

	empty, err := s.ListUserLinks(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, code := range []string{"first01", "second2", "third03"} {
		link := &domain.Link{
			ShortCode: code,
			LongURL:   fmt.Sprintf("https://example.com/%d", i),
			UserID:    alice.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateLink(ctx, link))
	}
	require.NoError(t, s.CreateLink(ctx, &domain.Link{
		ShortCode: "bobs001",
		LongURL:   "https://bob.example",
		UserID:    bob.ID,
		CreatedAt: base.Add(time.Hour),
	}))

	links, err := s.ListUserLinks(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "third03", links[0].ShortCode)
	assert.Equal(t, "second2", links[1].ShortCode)
	assert.Equal(t, "first01", links[2].ShortCode)
	for _, link := range links {
		assert.Equal(t, alice.ID, link.UserID)
	}

	bobLinks, err := s.ListUserLinks(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobLinks, 1)
	assert.Equal(t, "bobs001", bobLinks[0].ShortCode)
}

func testRecordVisit(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	owner, err := s.CreateUser(ctx, "owner", "hash")
	require.NoError(t, err)
	require.NoError(t, s.CreateLink(ctx, &domain.Link{ShortCode: "visit01", LongURL: "https://example.com", UserID: owner.ID}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordVisit(ctx, "visit01"))
	}

	link, err := s.GetLink(ctx, "visit01")
	require.NoError(t, err)
	assert.Equal(t, int64(3), link.ClickCount)

	assert.NoError(t, s.RecordVisit(ctx, "missing"), "unknown code must be a no-op")
}

func testRecordVisitConcurrent(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	owner, err := s.CreateUser(ctx, "owner", "hash")
	require.NoError(t, err)
	require.NoError(t, s.CreateLink(ctx, &domain.Link{ShortCode: "conc001", LongURL: "https://example.com", UserID: owner.ID}))

	const visits = 50
	var wg sync.WaitGroup
	errs := make(chan error, visits)
	for i := 0; i < visits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RecordVisit(ctx, "conc001")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	link, err := s.GetLink(ctx, "conc001")
	require.NoError(t, err)
	assert.Equal(t, int64(visits), link.ClickCount)
}

func testClicks(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	owner, err := s.CreateUser(ctx, "owner", "hash")
	require.NoError(t, err)
	link := &domain.Link{ShortCode: "click01", LongURL: "https://example.com", UserID: owner.ID}
	require.NoError(t, s.CreateLink(ctx, link))

	for _, device := range []string{domain.DeviceMobile, domain.DeviceMobile, domain.DeviceDesktop} {
		device := device
		ua := "test-agent"
		require.NoError(t, s.RecordClick(ctx, &domain.Click{
			LinkID:     link.ID,
			DeviceType: &device,
			UserAgent:  &ua,
			ClickedAt:  time.Now(),
		}))
	}

	byDevice, err := s.GetClicksByDevice(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byDevice[domain.DeviceMobile])
	assert.Equal(t, int64(1), byDevice[domain.DeviceDesktop])

	none, err := s.GetClicksByDevice(ctx, link.ID+1000)
	require.NoError(t, err)
	assert.Empty(t, none)
}
