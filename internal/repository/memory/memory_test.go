package memory_test

import (
	"PURLS-Backend/internal/domain"
	"PURLS-Backend/internal/repository"
	"PURLS-Backend/internal/repository/memory"
	"PURLS-Backend/internal/repository/storagetest"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStorage_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) repository.Storage {
		return memory.New()
	})
}

func TestMemStorage_ReturnsCopies(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	require.NoError(t, s.CreateLink(ctx, &domain.Link{ShortCode: "copy001", LongURL: "https://example.com", UserID: user.ID}))

	link, err := s.GetLink(ctx, "copy001")
	require.NoError(t, err)
	link.ClickCount = 100
	link.LongURL = "https://evil.example"

	again, err := s.GetLink(ctx, "copy001")
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.ClickCount)
	assert.Equal(t, "https://example.com", again.LongURL)
}

func TestMemStorage_RecordClickUnknownLink(t *testing.T) {
	s := memory.New()
	err := s.RecordClick(context.Background(), &domain.Click{LinkID: 42})
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}
