package repository

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/database"
	"github.com/bioeq-design-server/internal/domain"
)

// Opened is a project store together with its health probe.
type Opened struct {
	Store  domain.ProjectStore
	Health func(ctx context.Context) error
}

// Open creates the project store selected by config.Driver. For PostgreSQL the
// schema is migrated first when AutoMigrate is set.
func Open(ctx context.Context, config domain.DatabaseConfig, logger *logrus.Logger) (*Opened, error) {
	switch config.Driver {
	case "postgres":
		dbConfig := database.ConfigFrom(config)
		if config.AutoMigrate {
			if err := database.Migrate(ctx, dbConfig.URL(), config.MigrationsPath, logger); err != nil {
				return nil, err
			}
		}
		db, err := database.NewConnection(ctx, dbConfig, logger)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: NewPostgresStore(db, logger), Health: db.Health}, nil

	case "sqlite", "":
		store, err := NewSQLiteStore(config.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: store, Health: store.Ping}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
}
