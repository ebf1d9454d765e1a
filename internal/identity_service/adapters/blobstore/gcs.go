// Package blobstore implements the blob store gateway on Google Cloud
// Storage.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

// GCSStore is a Cloud Storage backed repository.BlobStore.
type GCSStore struct {
	bucket *storage.BucketHandle
	logger *slog.Logger
}

// NewGCSStore wraps one bucket of an existing storage client.
func NewGCSStore(client *storage.Client, bucketName string, logger *slog.Logger) *GCSStore {
	return &GCSStore{
		bucket: client.Bucket(bucketName),
		logger: logger.With("adapter", "gcs_blobstore"),
	}
}

// ListChildren lists one level under prefix: objects directly below it and
// the nested "folder" prefixes.
func (s *GCSStore) ListChildren(ctx context.Context, prefix string) (repository.BlobListing, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var listing repository.BlobListing
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return repository.BlobListing{}, fmt.Errorf("failed to list blob prefix %q: %w", prefix, err)
		}
		if attrs.Prefix != "" {
			listing.SubPrefixes = append(listing.SubPrefixes, attrs.Prefix)
			continue
		}
		listing.Objects = append(listing.Objects, attrs.Name)
	}
	return listing, nil
}

// DeleteObject removes one object; absence maps to domain.ErrNotFound so
// deletion flows can treat it as already done.
func (s *GCSStore) DeleteObject(ctx context.Context, ref string) error {
	err := s.bucket.Object(ref).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
	}
	if err != nil {
		return fmt.Errorf("failed to delete blob object %q: %w", ref, err)
	}
	return nil
}
