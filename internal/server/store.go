package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/gitpoints/internal/config"
	"github.com/sakif/gitpoints/internal/repository"
	"github.com/sakif/gitpoints/internal/repository/mongo"
	sqliteRepo "github.com/sakif/gitpoints/internal/repository/sqlite"
)

// OpenStore connects the configured user record store. It is called once at
// startup; any failure is fatal.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		if cfg.DBPath != ":memory:" {
			// os.MkdirAll is a no-op when the directory already exists.
			dir := filepath.Dir(cfg.DBPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("using sqlite store", slog.String("path", cfg.DBPath))
		return db, nil

	case config.DriverMongo:
		if cfg.Credentials == nil {
			return nil, fmt.Errorf("mongo store: %w: STORE_CREDENTIALS", config.ErrMissingRequiredValue)
		}
		cert, err := cfg.Credentials.X509KeyPair()
		if err != nil {
			return nil, fmt.Errorf("mongo store: %w", err)
		}
		store, err := mongo.New(ctx, mongo.Options{
			URI:               cfg.Credentials.URI,
			Database:          cfg.Credentials.Database,
			ClientCertificate: cert,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using mongo store",
			slog.String("database", cfg.Credentials.Database),
			slog.Bool("x509", cert != nil),
		)
		return store, nil
	}
	return nil, fmt.Errorf("%w: STORE_DRIVER (%s)", config.ErrInvalidValue, cfg.Driver)
}
