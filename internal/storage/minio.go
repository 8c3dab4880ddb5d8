package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rendition/internal/config"
	"rendition/internal/services"
)

// MinioStore implements Store against an S3-compatible endpoint.
type MinioStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
	httpc    *http.Client
}

// NewMinioStore connects to the configured endpoint. The bucket must already
// exist; provisioning is an operator concern.
func NewMinioStore(cfg config.Storage) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "connect", cfg.Endpoint, err)
	}
	return &MinioStore{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
		secure:   cfg.UseSSL,
		httpc:    http.DefaultClient,
	}, nil
}

// Upload publishes localPath under logicalID in the configured bucket.
func (s *MinioStore) Upload(ctx context.Context, localPath, logicalID string) (Object, error) {
	if _, err := s.client.FPutObject(ctx, s.bucket, logicalID, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	}); err != nil {
		return Object{}, services.Wrap(services.ErrTransient, "storage", "upload", logicalID, err)
	}
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return Object{
		URL: fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, logicalID),
		ID:  logicalID,
	}, nil
}

// Download fetches source to destPath. Absolute URLs are fetched over HTTP;
// anything else is treated as an object key in the configured bucket.
func (s *MinioStore) Download(ctx context.Context, source, destPath string) error {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return s.downloadHTTP(ctx, source, destPath)
	}
	if err := s.client.FGetObject(ctx, s.bucket, source, destPath, minio.GetObjectOptions{}); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "download", source, err)
	}
	return nil
}

// Delete removes the artifact with the given identifier from the bucket.
func (s *MinioStore) Delete(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "delete", id, err)
	}
	return nil
}

func (s *MinioStore) downloadHTTP(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "storage", "download", url, err)
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "storage", "download", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "storage", "download",
			fmt.Sprintf("%s: unexpected status %d", url, resp.StatusCode), nil)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "storage", "download", "create "+destPath, err)
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "download", "write "+destPath, err)
	}
	return nil
}

var _ Store = (*MinioStore)(nil)
