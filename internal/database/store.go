package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/store/gormstore"
	"github.com/hugh/go-magiclink/internal/store/memory"
	"github.com/hugh/go-magiclink/internal/store/mongostore"
	"github.com/hugh/go-magiclink/pkg/config"
)

// OpenStore builds the store selected by STORE_DRIVER and prepares its schema.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil

	case config.StorePostgres:
		db, err := Connect(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := Migrate(ctx, db); err != nil {
				return nil, err
			}
			logger.Info("database migrations applied")
		}
		return gormstore.New(db), nil

	case config.StoreMongo:
		st, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
		logger.Info("connected to mongodb", "database", cfg.Mongo.Database)
		return st, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
