package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSProvider archives page snapshots in a Google Cloud Storage bucket.
// Authentication uses Application Default Credentials.
type GCSProvider struct {
	client     *storage.Client
	bucketName string
	logger     *zap.Logger
}

// NewGCSProvider initializes the client and verifies access to the bucket,
// failing fast on startup if the configuration is wrong.
func NewGCSProvider(ctx context.Context, bucketName string, logger *zap.Logger) (*GCSProvider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	bkt := client.Bucket(bucketName)
	if _, err := bkt.Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("failed to close GCS client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("get GCS bucket %q attributes: %w", bucketName, err)
	}

	return &GCSProvider{
		client:     client,
		bucketName: bucketName,
		logger:     logger,
	}, nil
}

// Save uploads the data and returns a gs:// URI.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) (string, error) {
	wc := g.client.Bucket(g.bucketName).Object(objectName).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		if cerr := wc.Close(); cerr != nil {
			g.logger.Warn("failed to close GCS writer after write failure", zap.Error(cerr))
		}
		return "", fmt.Errorf("write GCS object %s: %w", objectName, err)
	}
	// Close finalizes the upload; buffered data is flushed here.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close GCS writer for object %s: %w", objectName, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucketName, objectName), nil
}

// Close releases the underlying client.
func (g *GCSProvider) Close() error {
	if err := g.client.Close(); err != nil {
		return fmt.Errorf("close GCS client: %w", err)
	}
	return nil
}
