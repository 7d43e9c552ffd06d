package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bioeq-design-server/internal/database"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("bioeq"),
		postgres.WithUsername("planner"),
		postgres.WithPassword("planner"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "bioeq",
		Username:    "planner",
		Password:    "planner",
		MaxConns:    4,
		MinConns:    1,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute,
		SSLMode:     "disable",
	}

	logger := quietLogger()
	require.NoError(t, database.Migrate(ctx, config.URL(), "", logger))

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err)

	store := NewPostgresStore(db, logger)
	defer store.Close()

	testStoreBehaviour(t, store)
}
