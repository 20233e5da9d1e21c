// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/lsendel/LLMRank-app-sub001/internal/config"
)

// ObjectStore is the slice of object storage the pipeline needs. The content
// scorer depends on this interface so tests can stub stored HTML.
type ObjectStore interface {
	// FetchHTML returns the stored raw HTML for a key. A missing object is
	// (_, false, nil), not an error: the crawler may not have stored every
	// page and absence just skips deferred scoring for it.
	FetchHTML(ctx context.Context, key string) (string, bool, error)
}

// StorageService handles object storage operations (S3-compatible: Tigris,
// MinIO, AWS). Raw page HTML and performance audits live here, keyed by the
// storage keys the crawler reports with each batch.
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.StorageEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint for S3-compatible storage (Tigris, MinIO, etc.)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// FetchHTML retrieves raw page HTML by storage key.
func (s *StorageService) FetchHTML(ctx context.Context, key string) (string, bool, error) {
	if !s.enabled || key == "" {
		return "", false, nil
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return string(data), true, nil
}

// StoreHTML uploads raw page HTML under the given key. Used by tooling and
// tests; the production writer is the crawler.
func (s *StorageService) StoreHTML(ctx context.Context, key, html string) error {
	if !s.enabled {
		return nil
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(html)),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to store object %s: %w", key, err)
	}
	return nil
}
