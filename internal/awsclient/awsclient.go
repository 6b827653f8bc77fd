// Package awsclient builds the process-wide AWS clients once at start-up.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Config holds the settings shared by every AWS client.
type Config struct {
	Region           string
	AccessKeyID      string // Optional: static credentials
	SecretAccessKey  string // Optional: static credentials
	S3Endpoint       string // Optional: S3-compatible endpoint (MinIO, LocalStack)
	DynamoDBEndpoint string // Optional: DynamoDB Local endpoint
}

// Clients bundles the service clients used by the pipeline.
type Clients struct {
	S3             *s3.Client
	DynamoDB       *dynamodb.Client
	SSM            *ssm.Client
	SecretsManager *secretsmanager.Client
}

// LoadAWSConfig resolves the shared aws.Config, preferring static credentials when given.
func LoadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

// New creates all service clients from a single aws.Config.
func New(ctx context.Context, cfg Config) (*Clients, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}

	var ddbOpts []func(*dynamodb.Options)
	if cfg.DynamoDBEndpoint != "" {
		ddbOpts = append(ddbOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		})
	}

	return &Clients{
		S3:             s3.NewFromConfig(awsCfg, s3Opts...),
		DynamoDB:       dynamodb.NewFromConfig(awsCfg, ddbOpts...),
		SSM:            ssm.NewFromConfig(awsCfg),
		SecretsManager: secretsmanager.NewFromConfig(awsCfg),
	}, nil
}
