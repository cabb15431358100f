package gcsuploader

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/receipt-auditor/internal/gcs"
)

// StorageService is re-exported from the shared gcs package.
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService
// backed by a shared Google Cloud Storage client.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage service with its own client.
// It assumes Application Default Credentials are configured.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSStorageService{client: client}, nil
}

// Close releases the storage client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}

// UploadFile uploads a local file with the shared client.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFileWithClient(ctx, s.client, bucketName, objectName, filePath)
}

// UploadReader streams an upload with the shared client.
func (s *GCSStorageService) UploadReader(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) (string, error) {
	return UploadReaderWithClient(ctx, s.client, bucketName, objectName, contentType, r)
}

// FetchFromGCS downloads an object with the shared client.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCSWithClient(ctx, s.client, gcsURI)
}

// ExtractFilenameFromGCSURI delegates to the package function.
func (s *GCSStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return ExtractFilenameFromGCSURI(uri)
}

// CreateBucket creates the receipts bucket with the shared client.
func (s *GCSStorageService) CreateBucket(ctx context.Context, projectID, bucketName, location string) error {
	return CreateBucketWithClient(ctx, s.client, projectID, bucketName, location)
}

var _ StorageService = (*GCSStorageService)(nil)
