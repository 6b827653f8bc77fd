// Package bootstrap wires configuration, AWS clients and the pipeline
// components into the services used by the HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mediavault/mediavault-api/internal/awsclient"
	"github.com/mediavault/mediavault-api/internal/backup"
	"github.com/mediavault/mediavault-api/internal/config"
	"github.com/mediavault/mediavault-api/internal/ingest"
	"github.com/mediavault/mediavault-api/internal/media"
	"github.com/mediavault/mediavault-api/internal/metadata"
	"github.com/mediavault/mediavault-api/internal/params"
	"github.com/mediavault/mediavault-api/internal/recommend"
	"github.com/mediavault/mediavault-api/internal/server"
	"github.com/mediavault/mediavault-api/internal/storage"
	"github.com/mediavault/mediavault-api/internal/transcode"
)

// Values resolved by memory-backend runs when no override is configured.
const (
	memoryBucket       = "mediavault-local"
	memoryTable        = "mediavault-local"
	memoryPartitionKey = "owner_id"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Services server.Services
	Resolver *params.Resolver
	Scratch  *storage.LocalStorage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	names := settingNames(cfg)

	var (
		objects  storage.ObjectStore
		store    metadata.Store
		resolver *params.Resolver
	)

	if cfg.UseMemoryBackends() {
		src := params.NewStaticSource(
			map[string]string{names.Bucket.Name: memoryBucket, names.Table.Name: memoryTable},
			map[string]string{names.PartitionKey.Name: memoryPartitionKey, names.SearchAPIKey.Name: "test"},
		)
		resolver = params.NewResolver(src, names, params.WithRefresh(cfg.ParamRefresh), params.WithLogger(logger))
		objects = storage.NewMemoryStorage()
		store = metadata.NewMemoryStore()
		logger.Info("memory backends configured")
	} else {
		clients, err := awsclient.New(ctx, awsclient.Config{
			Region:           cfg.AWSRegion,
			AccessKeyID:      cfg.AWSAccessKeyID,
			SecretAccessKey:  cfg.AWSSecretAccessKey,
			S3Endpoint:       cfg.S3Endpoint,
			DynamoDBEndpoint: cfg.DynamoDBEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("create AWS clients: %w", err)
		}
		resolver = params.NewResolver(
			params.NewAWSSource(clients.SSM, clients.SecretsManager),
			names,
			params.WithRefresh(cfg.ParamRefresh),
			params.WithLogger(logger),
		)
		objects = storage.NewS3Storage(clients.S3, resolver.Bucket, logger)
		store = metadata.NewDynamoStore(clients.DynamoDB, resolver.Table, resolver.PartitionKey, logger)
		logger.Info("AWS backends configured",
			slog.String("region", cfg.AWSRegion),
			slog.String("s3_endpoint", cfg.S3Endpoint),
			slog.String("dynamodb_endpoint", cfg.DynamoDBEndpoint),
		)
	}

	scratch, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create scratch storage: %w", err)
	}
	logger.Info("scratch storage configured", slog.String("temp_dir", scratch.TempDir()))

	versions := metadata.NewVersionStore(store, cfg.OwnerID, metadata.WithLogger(logger))
	prober := media.NewFFprobe(cfg.FFprobePath, logger)
	encoder := media.NewFFmpeg(cfg.FFmpegPath, logger)

	return &Dependencies{
		Services: server.Services{
			Uploader:   ingest.NewOrchestrator(prober, objects, versions, logger),
			Versions:   versions,
			Transcoder: transcode.NewEngine(objects, scratch, encoder, transcode.WithLogger(logger)),
			Backups:    backup.NewManager(objects, backup.WithLogger(logger)),
			Recommender: recommend.NewClient(resolver.SearchAPIKey,
				recommend.WithBaseURL(cfg.SearchBaseURL),
				recommend.WithLogger(logger),
			),
			Objects: objects,
		},
		Resolver: resolver,
		Scratch:  scratch,
	}, nil
}

func settingNames(cfg *config.Config) params.Names {
	return params.Names{
		Bucket:       params.Setting{Override: cfg.S3Bucket, Name: cfg.ParamBucketName},
		Table:        params.Setting{Override: cfg.DynamoDBTable, Name: cfg.ParamTableName},
		PartitionKey: params.Setting{Override: cfg.DynamoDBPartitionKey, Name: cfg.SecretPartitionKey},
		SearchAPIKey: params.Setting{Override: cfg.SearchAPIKey, Name: cfg.SecretSearchAPIKey},
	}
}
