package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/mediavault/mediavault-api/internal/metrics"
)

// BucketFunc returns the bucket to operate on. It is called on every
// operation so the bucket name can be resolved from external configuration.
type BucketFunc func(ctx context.Context) (string, error)

// StaticBucket returns a BucketFunc that always yields name.
func StaticBucket(name string) BucketFunc {
	return func(context.Context) (string, error) { return name, nil }
}

// S3API is the subset of the S3 client used by S3Storage.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// S3Storage implements ObjectStore on top of Amazon S3 or an S3-compatible endpoint.
type S3Storage struct {
	client  S3API
	presign *s3.PresignClient
	bucket  BucketFunc
	logger  *slog.Logger
}

var _ ObjectStore = (*S3Storage)(nil)

// NewS3Storage creates an S3Storage from an already configured client.
func NewS3Storage(client *s3.Client, bucket BucketFunc, logger *slog.Logger) *S3Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		logger:  logger,
	}
}

// Put uploads body under key.
func (s *S3Storage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (err error) {
	defer s.observe("put", time.Now(), &err)

	bucket, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Get downloads the object stored under key.
func (s *S3Storage) Get(ctx context.Context, key string) (_ *Object, err error) {
	defer s.observe("get", time.Now(), &err)

	bucket, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get object %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	return &Object{
		Body:        out.Body,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

// Copy duplicates srcKey to dstKey server-side.
func (s *S3Storage) Copy(ctx context.Context, srcKey, dstKey string) (err error) {
	defer s.observe("copy", time.Now(), &err)

	bucket, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(bucket + "/" + url.PathEscape(srcKey)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("copy %s to %s: %w", srcKey, dstKey, ErrNotFound)
		}
		return fmt.Errorf("copy %s to %s: %w", srcKey, dstKey, err)
	}

	s.logger.Debug("object copied",
		slog.String("bucket", bucket),
		slog.String("src", srcKey),
		slog.String("dst", dstKey),
	)
	return nil
}

// PresignGet returns a presigned GET URL valid for ttl.
func (s *S3Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (_ string, err error) {
	defer s.observe("presign", time.Now(), &err)

	bucket, err := s.bucket(ctx)
	if err != nil {
		return "", err
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Storage) observe(op string, start time.Time, errp *error) {
	metrics.RecordStorageOperation(op, metrics.Status(*errp), time.Since(start).Seconds())
}

// isNotFound reports whether err is S3's missing-key response. Typed errors
// cover GetObject; CopyObject only surfaces the generic API error code.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
