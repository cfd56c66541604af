package postgres_test

import (
	"PURLS-Backend/internal/config"
	"PURLS-Backend/internal/database"
	"PURLS-Backend/internal/repository"
	"PURLS-Backend/internal/repository/postgres"
	"PURLS-Backend/internal/repository/storagetest"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// startPostgres runs a throwaway PostgreSQL container; the test is skipped
// when Docker is not available.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("purls_test"),
		tcpostgres.WithUsername("purls"),
		tcpostgres.WithPassword("purls"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresStorage_Contract(t *testing.T) {
	dsn := startPostgres(t)
	log := zap.NewNop()

	cfg := &config.Database{
		URL:             dsn,
		MaxIdleConns:    2,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
	db, err := database.NewConnection(cfg, config.EnvProd, log)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, log))
	t.Cleanup(func() { _ = database.Close(db, log) })

	storagetest.Run(t, func(t *testing.T) repository.Storage {
		truncate(t, db)
		return postgres.New(db, log)
	})
}

func truncate(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec("TRUNCATE TABLE clicks, links, users RESTART IDENTITY CASCADE").Error)
}
