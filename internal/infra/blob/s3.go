// Package blob implements the object store boundary on any S3-compatible
// endpoint (AWS S3, Cloudflare R2, MinIO).
package blob

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/pdfchat/internal/infra/config"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// S3Store talks to the bucket holding uploaded PDFs. It is the only layer
// that sees raw S3 errors; everything it returns carries a typed code.
type S3Store struct {
	client  *minio.Client
	bucket  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewS3Store(cfg config.BlobConfig, logger *slog.Logger) (*S3Store, error) {
	endpoint, secure := sanitizeEndpoint(cfg.Endpoint)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeBlobUnavailable, "failed to initialize blob client", err)
	}

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		timeout: cfg.CallTimeout,
		logger:  logger.With("component", "blob_store"),
	}, nil
}

// Fetch downloads the full object into memory. Uploads are capped well below
// anything that would make buffering a problem.
func (s *S3Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapError(key, err)
	}

	s.logger.Debug("object fetched", "key", key, "size_bytes", len(data))
	return data, nil
}

// SignedPut returns a presigned upload URL for the given key.
func (s *S3Store) SignedPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", s.mapError(key, err)
	}
	return u.String(), nil
}

// SignedGet returns a presigned download URL for the given key.
func (s *S3Store) SignedGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", s.mapError(key, err)
	}
	return u.String(), nil
}

func (s *S3Store) mapError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return apperrors.WithDetail(apperrors.CodeBlobNotFound, "object not found", map[string]any{"key": key}, err)
	case "AccessDenied":
		return apperrors.Wrap(apperrors.CodeBlobAccessDenied, "access to object denied", err)
	default:
		return apperrors.Wrap(apperrors.CodeBlobUnavailable, "blob store request failed", err)
	}
}

// sanitizeEndpoint strips the scheme the minio client does not want and
// reports whether TLS should be used. A bare host defaults to TLS.
func sanitizeEndpoint(endpoint string) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false
	default:
		return endpoint, true
	}
}
