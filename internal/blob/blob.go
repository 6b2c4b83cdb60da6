package blob

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"gritAPI/internal/apperr"
)

// MaxPhotoBytes caps check-in photo uploads at 5 MB.
const MaxPhotoBytes = 5 << 20

// Storage uploads check-in photos to a Firebase storage bucket and hands
// back stable public URLs. Upload and entry linkage are two separate phases:
// the entry row exists first, the photo URL is attached after the upload
// lands.
type Storage struct {
	bucketName string
	bucket     *storage.BucketHandle
}

// NewStorage initializes the Firebase app and resolves the default bucket.
func NewStorage(ctx context.Context, credentialsFile, bucketName string) (*Storage, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: bucketName}, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage client: %w", err)
	}

	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("failed to get default bucket: %w", err)
	}

	log.Printf("Firebase storage initialized for bucket %s", bucketName)
	return &Storage{bucketName: bucketName, bucket: bucket}, nil
}

// ValidatePhoto rejects non-image or oversized uploads before any bytes go
// over the wire. Size/type checks are the engine's responsibility, not the
// bucket's.
func ValidatePhoto(contentType string, size int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return apperr.ValidationError{Field: "photo", Message: "only image uploads are allowed"}
	}
	if size > MaxPhotoBytes {
		return apperr.ValidationError{Field: "photo", Message: "image must be 5 MB or smaller"}
	}
	return nil
}

// UploadPhoto streams an already validated image into the bucket under a
// per-challenge/per-date object name and returns its public URL.
func (s *Storage) UploadPhoto(ctx context.Context, challengeID uuid.UUID, entryDate, contentType string, r io.Reader) (string, error) {
	object := fmt.Sprintf("challenge-photos/%s/%s/%s", challengeID, entryDate, uuid.New().String())

	w := s.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"

	if _, err := io.Copy(w, io.LimitReader(r, MaxPhotoBytes)); err != nil {
		w.Close()
		return "", fmt.Errorf("%w: failed to upload photo: %v", apperr.ErrUnavailable, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to finalize photo upload: %v", apperr.ErrUnavailable, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, object), nil
}
