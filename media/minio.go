package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectClient is the subset of the MinIO client the asset store uses.
type ObjectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// MinioConfig configures a MinIO asset store.
type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string

	// PublicURL is the base URL assets are served from, without the bucket.
	PublicURL string

	// Root is the namespace root object keys are placed under.
	Root string
}

// Minio stores assets in a MinIO or S3 bucket.
type Minio struct {
	client    ObjectClient
	bucket    string
	publicURL string
	root      string
}

var _ Assets = (*Minio)(nil)

// NewMinio connects to the configured endpoint.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}
	return NewMinioWithClient(client, cfg.Bucket, publicURL, cfg.Root), nil
}

// NewMinioWithClient wraps an existing client.
func NewMinioWithClient(client ObjectClient, bucket, publicURL, root string) *Minio {
	return &Minio{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		root:      root,
	}
}

// Upload square-crops and resizes the image, then stores it under
// root/preset/name, replacing any previous version.
func (m *Minio) Upload(ctx context.Context, data []byte, name string, opts UploadOptions) (UploadResult, error) {
	img, err := SquareResize(data, opts.Width, opts.Height, opts.MaxPixels)
	if err != nil {
		return UploadResult{}, err
	}

	key := path.Join(m.root, opts.Preset, name)
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(img), int64(len(img)), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("put %s: %w", key, err)
	}
	return UploadResult{URL: m.publicURL + "/" + m.bucket + "/" + key}, nil
}

// Destroy removes the object, then confirms it is gone. RemoveObject
// succeeds for missing keys too, so only a NoSuchKey stat counts as proof.
func (m *Minio) Destroy(ctx context.Context, assetID string) (DestroyResult, error) {
	if err := m.client.RemoveObject(ctx, m.bucket, assetID, minio.RemoveObjectOptions{}); err != nil {
		return DestroyResult{}, fmt.Errorf("remove %s: %w", assetID, err)
	}

	_, err := m.client.StatObject(ctx, m.bucket, assetID, minio.StatObjectOptions{})
	if err == nil {
		return DestroyResult{OK: false}, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return DestroyResult{OK: true}, nil
	}
	return DestroyResult{}, fmt.Errorf("stat %s: %w", assetID, err)
}
