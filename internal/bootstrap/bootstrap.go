package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-weekly-report/internal/config"
	"github.com/noah-isme/gema-weekly-report/internal/database"
	"github.com/noah-isme/gema-weekly-report/internal/repository"
	"github.com/noah-isme/gema-weekly-report/internal/service"
	"github.com/noah-isme/gema-weekly-report/pkg/ai"
	"github.com/noah-isme/gema-weekly-report/pkg/artifact"
	"github.com/noah-isme/gema-weekly-report/pkg/storage"
)

// Resources are the long lived handles shared by the API server and the CLI.
type Resources struct {
	DB      *gorm.DB
	Redis   *redis.Client
	NATS    *nats.Conn
	Reports service.WeeklyReportService
}

// Close releases every optional connection.
func (r *Resources) Close() {
	if r.NATS != nil {
		_ = r.NATS.Drain()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// Build connects to the database and optional services and assembles the
// weekly report service. Redis, NATS and remote storage are only used when
// configured.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Resources, error) {
	res := &Resources{}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	res.DB = db

	deps := service.WeeklyReportDeps{
		Students:    repository.NewStudentRepository(db),
		Submissions: repository.NewHomeworkSubmissionRepository(db),
	}

	generator, err := ai.NewGenerator(ctx, ai.ProviderConfig{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIAPIKey(),
		Model:    cfg.AIModel,
		Logger:   logger,
	})
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("configure text generator: %w", err)
	}
	deps.Requester = service.NewReportRequester(generator, ai.GenerationParams{
		Temperature:     cfg.AITemperature,
		MaxOutputTokens: cfg.AIMaxOutputTokens,
	}, cfg.AITimeout, logger)

	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			res.Close()
			return nil, err
		}
		res.Redis = client
		deps.Registry = service.NewArtifactRegistry(client, cfg.ReportRegistryTTL, logger)
	}

	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			res.Close()
			return nil, err
		}
		res.NATS = conn
		deps.Events = service.NewReportEventPublisher(conn, cfg.NATSSubject, logger)
	}

	uploader, err := buildUploader(ctx, cfg, logger)
	if err != nil {
		res.Close()
		return nil, err
	}
	deps.Uploader = uploader

	format, err := artifact.ParseFormat(cfg.ReportFormat)
	if err != nil {
		res.Close()
		return nil, err
	}

	res.Reports = service.NewWeeklyReportService(deps, service.WeeklyReportOptions{
		OutputDir:       cfg.ReportOutputDir,
		Format:          format,
		SubmissionLimit: cfg.ReportSubmissionLimit,
		DigestSize:      cfg.ReportDigestSize,
		IncludeConcepts: cfg.ReportIncludeConcepts,
		Parallelism:     cfg.ReportParallelism,
	}, validator.New(validator.WithRequiredStructEnabled()), logger)

	return res, nil
}

// buildUploader returns nil for local storage.
func buildUploader(ctx context.Context, cfg config.Config, logger zerolog.Logger) (storage.Uploader, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return nil, nil
	case "cloudinary":
		uploader, err := storage.NewCloudinary(storage.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			return nil, err
		}
		return uploader, nil
	case "minio":
		uploader, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return uploader, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
