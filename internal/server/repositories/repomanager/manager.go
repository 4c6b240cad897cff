// Package repomanager opens the security store selected by configuration and,
// for PostgreSQL, applies the embedded goose migrations first.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/secledger/internal/server/config"
	"github.com/dmitrijs2005/secledger/internal/server/migrations"
	"github.com/dmitrijs2005/secledger/internal/server/repositories/security"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// openDB is a seam for testing sql.Open with the pgx driver.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// newS3Backend is a seam for testing the object-storage backend.
var newS3Backend = func(ctx context.Context, opts security.S3Options) (security.Backend, error) {
	return security.NewS3Backend(ctx, opts)
}

// Open builds the security.Store configured by cfg.StorageBackend.
func Open(ctx context.Context, cfg *config.Config) (security.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return security.NewDocumentStore(security.NewMemoryBackend(), cfg.DocumentSecret), nil

	case config.StorageFile, "":
		return security.NewDocumentStore(security.NewFileBackend(cfg.DocumentPath), cfg.DocumentSecret), nil

	case config.StorageS3:
		backend, err := newS3Backend(ctx, security.S3Options{
			Region:       cfg.S3Region,
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
			Key:          cfg.S3DocumentKey,
		})
		if err != nil {
			return nil, err
		}
		return security.NewDocumentStore(backend, cfg.DocumentSecret), nil

	case config.StoragePostgres:
		db, err := openDB(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return security.NewPostgresStore(db), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
