// Package storage wraps an S3-compatible object store holding snapshot
// archive exports. It degrades to a disabled no-op service when no endpoint
// is configured, so archive features switch off cleanly in development.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/fx"

	"github.com/meridian-ai/meridian/pkg/logger"
)

var Module = fx.Module("storage",
	fx.Provide(NewConfig),
	fx.Provide(NewService),
)

// Config holds archive storage settings.
type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	BucketArchives string
}

// NewConfig reads storage settings from the environment.
func NewConfig() *Config {
	cfg := &Config{
		Endpoint:       os.Getenv("STORAGE_ENDPOINT"),
		AccessKey:      os.Getenv("STORAGE_ACCESS_KEY"),
		SecretKey:      os.Getenv("STORAGE_SECRET_KEY"),
		Region:         os.Getenv("STORAGE_REGION"),
		BucketArchives: os.Getenv("STORAGE_BUCKET_ARCHIVES"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.BucketArchives == "" {
		cfg.BucketArchives = "snapshot-archives"
	}
	return cfg
}

// Enabled reports whether enough configuration is present to reach a bucket.
func (c *Config) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Service is the archive bucket client. A disabled service is still a valid
// value; every operation on it fails with a clear error and Enabled reports
// false.
type Service struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	log     *slog.Logger
}

// NewService connects to the configured bucket. MinIO needs path-style
// addressing and a fixed endpoint, which is why the resolver is overridden.
func NewService(cfg *Config, log *slog.Logger) (*Service, error) {
	log = log.With(logger.Scope("storage"))

	if !cfg.Enabled() {
		log.Warn("archive storage disabled - no configuration provided")
		return &Service{log: log}, nil
	}

	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     cfg.Region,
			}, nil
		})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	log.Info("archive storage initialized",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("bucket", cfg.BucketArchives))

	return &Service{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.BucketArchives,
		log:     log,
	}, nil
}

// Enabled reports whether the service has a live client.
func (s *Service) Enabled() bool {
	return s.client != nil
}

func (s *Service) disabledErr() error {
	return fmt.Errorf("storage service not enabled")
}

// UploadOptions sets object attributes on upload.
type UploadOptions struct {
	ContentType        string
	ContentDisposition string
	Metadata           map[string]string
}

// UploadResult describes the stored object.
type UploadResult struct {
	Key         string
	Bucket      string
	ETag        string
	Size        int64
	ContentType string
	StorageURL  string
}

// Upload writes data under key in the archives bucket.
func (s *Service) Upload(ctx context.Context, key string, data io.Reader, size int64, opts UploadOptions) (*UploadResult, error) {
	if !s.Enabled() {
		return nil, s.disabledErr()
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentLength: aws.Int64(size),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentDisposition != "" {
		input.ContentDisposition = aws.String(opts.ContentDisposition)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		s.log.Error("failed to upload object", slog.String("key", key), logger.Error(err))
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	s.log.Debug("object uploaded",
		slog.String("key", key),
		slog.String("bucket", s.bucket),
		slog.Int64("size", size))

	return &UploadResult{
		Key:         key,
		Bucket:      s.bucket,
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		Size:        size,
		ContentType: opts.ContentType,
		StorageURL:  s.bucket + "/" + key,
	}, nil
}

// UploadArchive stores a snapshot export under a date-partitioned key.
func (s *Service) UploadArchive(ctx context.Context, snapshotID string, builtAt time.Time, data io.Reader, size int64) (*UploadResult, error) {
	return s.Upload(ctx, GenerateArchiveKey(snapshotID, builtAt), data, size, UploadOptions{
		ContentType:        "application/gzip",
		ContentDisposition: fmt.Sprintf(`attachment; filename="%s.jsonl.gz"`, snapshotID),
		Metadata: map[string]string{
			"snapshot-id": snapshotID,
			"built-at":    builtAt.UTC().Format(time.RFC3339),
		},
	})
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return s.disabledErr()
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to delete object", slog.String("key", key), logger.Error(err))
		return fmt.Errorf("delete failed: %w", err)
	}

	s.log.Debug("object deleted", slog.String("key", key))
	return nil
}

// Exists reports whether an object is present under key.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	if !s.Enabled() {
		return false, s.disabledErr()
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	// The SDK surfaces HeadObject misses inconsistently across S3
	// implementations, so match on the message.
	msg := err.Error()
	if strings.Contains(msg, "NotFound") || strings.Contains(msg, "404") || strings.Contains(msg, "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("head object failed: %w", err)
}

// GetSignedDownloadURLOptions configures a presigned download link.
type GetSignedDownloadURLOptions struct {
	ExpiresIn                  time.Duration
	ResponseContentDisposition string
}

// GetSignedDownloadURL returns a presigned GET link for key. Expiry defaults
// to one hour.
func (s *Service) GetSignedDownloadURL(ctx context.Context, key string, opts GetSignedDownloadURLOptions) (string, error) {
	if !s.Enabled() {
		return "", s.disabledErr()
	}
	if opts.ExpiresIn == 0 {
		opts.ExpiresIn = time.Hour
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if opts.ResponseContentDisposition != "" {
		input.ResponseContentDisposition = aws.String(opts.ResponseContentDisposition)
	}

	req, err := s.presign.PresignGetObject(ctx, input, func(po *s3.PresignOptions) {
		po.Expires = opts.ExpiresIn
	})
	if err != nil {
		s.log.Error("failed to generate presigned URL", slog.String("key", key), logger.Error(err))
		return "", fmt.Errorf("presign failed: %w", err)
	}
	return req.URL, nil
}

// GenerateArchiveKey builds the object key for a snapshot archive:
// snapshots/{yyyy}/{mm}/{dd}/{snapshotId}.jsonl.gz
func GenerateArchiveKey(snapshotID string, builtAt time.Time) string {
	t := builtAt.UTC()
	return fmt.Sprintf("snapshots/%04d/%02d/%02d/%s.jsonl.gz",
		t.Year(), int(t.Month()), t.Day(), SanitizeKeySegment(snapshotID))
}

var (
	keyUnsafe     = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	keyUnderscore = regexp.MustCompile(`_{2,}`)
)

// SanitizeKeySegment lowercases an identifier and strips everything unsafe
// in an object key segment. Empty or fully-stripped input becomes "unnamed".
func SanitizeKeySegment(segment string) string {
	s := keyUnsafe.ReplaceAllString(segment, "_")
	s = keyUnderscore.ReplaceAllString(s, "_")
	s = strings.ToLower(strings.Trim(s, "_"))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "unnamed"
	}
	return s
}
