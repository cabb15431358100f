package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

const uploadTimeout = 2 * time.Minute

// UploadFileWithClient uploads a local receipt image to bucketName/objectName.
func UploadFileWithClient(ctx context.Context, client *storage.Client, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	if _, err := UploadReaderWithClient(ctx, client, bucketName, objectName, ContentTypeForName(filePath), f); err != nil {
		return err
	}
	return nil
}

// UploadReaderWithClient copies r into a new object and returns its gs:// URI.
// A failed read aborts the upload; no partial object is created.
func UploadReaderWithClient(ctx context.Context, client *storage.Client, bucketName, objectName, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if err := copyToObject(w, cancel, r); err != nil {
		return "", err
	}

	return BuildGCSURI(bucketName, objectName), nil
}

// copyToObject streams r into w and finalizes it with Close. On a copy error
// the writer's context is cancelled instead, discarding the buffered bytes.
func copyToObject(w io.WriteCloser, cancel context.CancelFunc, r io.Reader) error {
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		return fmt.Errorf("copy receipt to GCS writer: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// FetchFromGCSWithClient downloads the object bytes for a gs:// URI.
func FetchFromGCSWithClient(ctx context.Context, client *storage.Client, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading bytes: %w", err)
	}

	return data, nil
}

// CreateBucketWithClient creates a receipts bucket. An existing bucket owned
// by the project is not an error.
func CreateBucketWithClient(ctx context.Context, client *storage.Client, projectID, bucketName, location string) error {
	attrs := &storage.BucketAttrs{Location: location}
	err := client.Bucket(bucketName).Create(ctx, projectID, attrs)
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	return fmt.Errorf("create bucket %s: %w", bucketName, err)
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}

	return parts[0], parts[1], nil
}

// BuildGCSURI joins a bucket and object name into a gs:// URI.
func BuildGCSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + strings.TrimPrefix(object, "/")
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/2024/12/receipt.png" → "receipt.png"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}

// ContentTypeForName guesses an image MIME type from a file extension.
func ContentTypeForName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
