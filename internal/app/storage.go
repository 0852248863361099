package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/simp-lee/catalog/internal/config"
	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/store/mongostore"
	"github.com/simp-lee/catalog/internal/store/sqlstore"
)

// Storage bundles the repositories of every resource with the health check
// and shutdown of the backend serving them.
type Storage struct {
	Driver        string
	Categories    domain.Repository[domain.Category]
	SubCategories domain.Repository[domain.SubCategory]

	ping  func(ctx context.Context) error
	close func() error
}

// Ping reports whether the backend is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if s == nil || s.ping == nil {
		return errors.New("storage is not configured")
	}
	return s.ping(ctx)
}

// Close releases the backend connection.
func (s *Storage) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// uniqueNames lists the collections whose name must be unique.
var uniqueNames = []string{
	domain.Category{}.TableName(),
	domain.SubCategory{}.TableName(),
}

// OpenStorage connects the backend selected by cfg.Driver. A failed initial
// connection is returned as an error.
func OpenStorage(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, errors.New("database config is nil")
	}
	if cfg.Driver == config.DriverMongo {
		return openMongo(ctx, cfg.Mongo, logger)
	}

	db, err := config.OpenSQL(cfg, logger)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLStorage(db)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	s.Driver = cfg.Driver
	return s, nil
}

func openMongo(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*Storage, error) {
	adapter, err := mongostore.NewAdapter(mongostore.Config{
		URI:              cfg.URI,
		Database:         cfg.Database,
		ConnectTimeout:   cfg.ConnectTimeoutDuration(),
		OperationTimeout: cfg.OperationTimeoutDuration(),
	}, logger)
	if err != nil {
		return nil, err
	}
	for _, coll := range uniqueNames {
		if err := adapter.EnsureUniqueIndex(ctx, coll, "name"); err != nil {
			_ = adapter.Close()
			return nil, err
		}
	}

	return &Storage{
		Driver:        config.DriverMongo,
		Categories:    mongostore.NewRepository[domain.Category](adapter, domain.Category{}.TableName()),
		SubCategories: mongostore.NewRepository[domain.SubCategory](adapter, domain.SubCategory{}.TableName()),
		ping:          adapter.Ping,
		close:         adapter.Close,
	}, nil
}

// NewSQLStorage migrates the catalog tables on db and serves them through
// GORM repositories.
func NewSQLStorage(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&domain.Category{}, &domain.SubCategory{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	categories, err := sqlstore.NewRepository[domain.Category](db, domain.CategorySchema())
	if err != nil {
		return nil, err
	}
	subs, err := sqlstore.NewRepository[domain.SubCategory](db, domain.SubCategorySchema())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	return &Storage{
		Driver:        db.Dialector.Name(),
		Categories:    categories,
		SubCategories: subs,
		ping:          sqlDB.PingContext,
		close:         sqlDB.Close,
	}, nil
}
