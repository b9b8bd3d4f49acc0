// Package bootstrap provides dependency initialization for the reframe API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/reframelab/reframe-api/internal/config"
	"github.com/reframelab/reframe-api/internal/generator"
	"github.com/reframelab/reframe-api/internal/job"
	"github.com/reframelab/reframe-api/internal/media"
	"github.com/reframelab/reframe-api/internal/storage"
	"github.com/reframelab/reframe-api/internal/veo"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Coordinator *job.Coordinator
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize Veo client and its backend adapter
	var veoOpts []veo.ClientOption
	if cfg.VeoModelID != "" {
		veoOpts = append(veoOpts, veo.WithModelID(cfg.VeoModelID))
	}
	veoClient, err := veo.NewClient(cfg.VeoProjectID, cfg.VeoLocation, cfg.OutputBucket, veoOpts...)
	if err != nil {
		return nil, fmt.Errorf("create Veo client: %w", err)
	}
	backend := generator.NewVeoAdapter(veoClient)

	// Initialize media processor
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)

	// Initialize job repository
	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	coordinator := job.NewCoordinator(repo, backend, store, processor, logger)

	return &Dependencies{
		Coordinator: coordinator,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.DataDir, cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("data_dir", cfg.DataDir),
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initRepository creates the job repository: Redis when configured, in-memory
// otherwise.
func initRepository(cfg *config.Config, logger *slog.Logger) (job.Repository, error) {
	if !cfg.RedisEnabled() {
		logger.Info("in-memory job repository configured")
		return job.NewMemoryRepository(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info("Redis job repository configured",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	return job.NewRedisRepository(client), nil
}
