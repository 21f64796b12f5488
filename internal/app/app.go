// Package app assembles the salvage pipeline from configuration. Both the
// CLI and the server start from here.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"rastersalvage/internal/batch"
	"rastersalvage/internal/config"
	"rastersalvage/internal/db"
	"rastersalvage/internal/journal"
	"rastersalvage/internal/raster"
	"rastersalvage/internal/raster/gdal"
	"rastersalvage/internal/raster/tiffmeta"
	"rastersalvage/internal/salvage"
	"rastersalvage/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type App struct {
	Orchestrator *salvage.Orchestrator
	Batch        *batch.Runner
	// Journal is nil when DATABASE_URL is empty.
	Journal *journal.PGJournal

	closers []func()
}

func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	a := &App{}

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if c, ok := store.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}
	store = storage.WithRetry(store, cfg.StorageRetryMaxElapsed, func(op string, err error, next time.Duration) {
		logger.Printf("[storage] %s failed, retrying in %s: %v", op, next, err)
	})

	codec := gdal.New(gdal.Options{
		TranslateBin: cfg.GDALTranslateBin,
		InfoBin:      cfg.GDALInfoBin,
	})
	var reader raster.Reader = codec
	if cfg.RasterReader == config.ReaderTIFF {
		reader = tiffmeta.Reader{}
	}

	deps := salvage.Deps{
		Store:  store,
		Reader: reader,
		Codec:  codec,
		Logger: logger,
	}

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		j, err := newJournal(ctx, pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Journal = j
		deps.Journal = j
	}

	orch, err := salvage.New(deps, salvage.Options{
		ScratchDir:       cfg.ScratchDir,
		KeepScratch:      cfg.KeepScratch,
		Tolerance:        cfg.Tolerance,
		ProbeSuffix:      cfg.ProbeSuffix,
		TrimSuffix:       cfg.TrimSuffix,
		CleanKeyPrefix:   cfg.CleanKeyPrefix,
		SalvageKeyPrefix: cfg.SalvageKeyPrefix,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}
	a.Orchestrator = orch
	a.Batch = batch.NewRunner(orch, cfg.BatchConcurrency, logger)
	return a, nil
}

// Close releases storage clients and the database pool, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newJournal(ctx context.Context, pool *pgxpool.Pool) (*journal.PGJournal, error) {
	j := journal.New(pool)
	if err := j.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}
	return j, nil
}

func newBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, storage.S3Options{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			ForcePathStyle:  cfg.S3ForcePathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client), nil
	case config.StorageMinio:
		return storage.NewMinioStore(storage.MinioOptions{
			Endpoint:        cfg.MinioEndpoint,
			AccessKeyID:     cfg.MinioAccessKey,
			SecretAccessKey: cfg.MinioSecretKey,
			UseSSL:          cfg.MinioUseSSL,
			Region:          cfg.S3Region,
		})
	case config.StorageGCS:
		return storage.NewGCSStore(ctx, cfg.GCSCredentialsFile)
	case config.StorageLocal:
		return storage.NewLocalStore(cfg.StorageRoot)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
