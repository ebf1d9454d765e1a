// Package firestore implements the remote document store gateway on
// Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

// Collection names owned by the remote store.
const (
	collMessages    = "messages"
	collBroadcasts  = "broadcasts"
	collRagFeedback = "ragFeedback"
	collFAQVectors  = "faqVectors"
	collFollowers   = "followers" // sub-collection under each vendor document
)

// broadcastDoc is the slice of the broadcast schema the deletion path needs:
// ownership plus the media objects the document points at.
type broadcastDoc struct {
	AuthorUID string   `firestore:"authorUid"`
	MediaRefs []string `firestore:"mediaRefs"`
}

// RemoteStore is a Firestore-backed repository.RemoteStore.
type RemoteStore struct {
	client *fs.Client
	logger *slog.Logger
}

// NewRemoteStore wraps an existing Firestore client.
func NewRemoteStore(client *fs.Client, logger *slog.Logger) *RemoteStore {
	return &RemoteStore{client: client, logger: logger.With("repository", "firestore")}
}

// mapErr translates gRPC status codes into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	default:
		return err
	}
}

func (s *RemoteStore) GetProfile(ctx context.Context, variant domain.Variant, uid string) (*domain.Profile, error) {
	snap, err := s.client.Collection(string(variant)).Doc(uid).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	var profile domain.Profile
	if err := snap.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode %s profile %s: %w", variant, uid, err)
	}
	profile.UID = snap.Ref.ID
	profile.Variant = variant
	return &profile, nil
}

func (s *RemoteStore) PutProfile(ctx context.Context, profile *domain.Profile) error {
	_, err := s.client.Collection(string(profile.Variant)).Doc(profile.UID).Set(ctx, profile)
	return mapErr(err)
}

func (s *RemoteStore) DeleteProfile(ctx context.Context, variant domain.Variant, uid string) error {
	// Firestore deletes are idempotent: deleting an absent document succeeds.
	_, err := s.client.Collection(string(variant)).Doc(uid).Delete(ctx)
	return mapErr(err)
}

func (s *RemoteStore) FindVendorByContact(ctx context.Context, field repository.ContactField, value string) (*domain.Profile, error) {
	iter := s.client.Collection(string(domain.VariantVendor)).
		Where(string(field), "==", value).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}

	var profile domain.Profile
	if err := snap.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode vendor profile %s: %w", snap.Ref.ID, err)
	}
	profile.UID = snap.Ref.ID
	profile.Variant = domain.VariantVendor
	return &profile, nil
}

func (s *RemoteStore) MessagesWithParticipant(ctx context.Context, uid string, pageSize int, cursor string) (repository.MessagePage, error) {
	q := s.client.Collection(collMessages).
		Where("participants", "array-contains", uid).
		OrderBy(fs.DocumentID, fs.Asc).
		Limit(pageSize)
	if cursor != "" {
		q = q.StartAfter(cursor)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var page repository.MessagePage
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return repository.MessagePage{}, mapErr(err)
		}
		var rec domain.MessageRecord
		if err := snap.DataTo(&rec); err != nil {
			return repository.MessagePage{}, fmt.Errorf("failed to decode message %s: %w", snap.Ref.ID, err)
		}
		rec.ID = snap.Ref.ID
		page.Records = append(page.Records, rec)
	}
	if len(page.Records) == pageSize {
		page.NextCursor = page.Records[len(page.Records)-1].ID
	}
	return page, nil
}

func (s *RemoteStore) RewriteMessages(ctx context.Context, records []domain.MessageRecord) error {
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*fs.BulkWriterJob, 0, len(records))
	for i := range records {
		rec := records[i]
		job, err := bw.Set(s.client.Collection(collMessages).Doc(rec.ID), rec)
		if err != nil {
			bw.End()
			return mapErr(err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (s *RemoteStore) PutMessage(ctx context.Context, record *domain.MessageRecord) error {
	_, err := s.client.Collection(collMessages).Doc(record.ID).Set(ctx, record)
	return mapErr(err)
}

func (s *RemoteStore) DeleteMessagesWithParticipant(ctx context.Context, uid string) (int, error) {
	return s.deleteMatching(ctx, s.client.Collection(collMessages).Where("participants", "array-contains", uid))
}

func (s *RemoteStore) DeleteAuthoredBroadcasts(ctx context.Context, uid string) ([]string, error) {
	iter := s.client.Collection(collBroadcasts).Where("authorUid", "==", uid).Documents(ctx)
	defer iter.Stop()

	var mediaRefs []string
	bw := s.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return mediaRefs, mapErr(err)
		}
		var doc broadcastDoc
		if err := snap.DataTo(&doc); err != nil {
			s.logger.WarnContext(ctx, "Skipping undecodable broadcast", "id", snap.Ref.ID, "error", err)
		} else {
			mediaRefs = append(mediaRefs, doc.MediaRefs...)
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return mediaRefs, mapErr(err)
		}
	}
	bw.End()
	return mediaRefs, nil
}

// DeleteFollowEdges removes both directions of the follow relationship: the
// uid's own followers sub-collection and the uid's entry in every other
// vendor's followers sub-collection. The reverse direction has no index, so
// it scans all vendor documents; deletes of absent entries are no-ops.
func (s *RemoteStore) DeleteFollowEdges(ctx context.Context, uid string) (int, error) {
	deleted := 0
	bw := s.client.BulkWriter(ctx)

	ownFollowers := s.client.Collection(string(domain.VariantVendor)).Doc(uid).Collection(collFollowers)
	ownIter := ownFollowers.DocumentRefs(ctx)
	for {
		ref, err := ownIter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return deleted, mapErr(err)
		}
		if _, err := bw.Delete(ref); err != nil {
			bw.End()
			return deleted, mapErr(err)
		}
		deleted++
	}

	vendorIter := s.client.Collection(string(domain.VariantVendor)).DocumentRefs(ctx)
	for {
		vendorRef, err := vendorIter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return deleted, mapErr(err)
		}
		if vendorRef.ID == uid {
			continue
		}
		if _, err := bw.Delete(vendorRef.Collection(collFollowers).Doc(uid)); err != nil {
			bw.End()
			return deleted, mapErr(err)
		}
		deleted++
	}

	bw.End()
	return deleted, nil
}

func (s *RemoteStore) DeleteFeedback(ctx context.Context, uid string) (int, error) {
	return s.deleteMatching(ctx, s.client.Collection(collRagFeedback).Where("uid", "==", uid))
}

func (s *RemoteStore) DeleteKnowledgeEntries(ctx context.Context, uid string) (int, error) {
	return s.deleteMatching(ctx, s.client.Collection(collFAQVectors).Where("ownerUid", "==", uid))
}

// deleteMatching removes every document the query matches via one BulkWriter
// pass and returns the count enqueued.
func (s *RemoteStore) deleteMatching(ctx context.Context, q fs.Query) (int, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	deleted := 0
	bw := s.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return deleted, mapErr(err)
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return deleted, mapErr(err)
		}
		deleted++
	}
	bw.End()
	return deleted, nil
}
