package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/firestore"
)

const (
	defaultCollection = "idempotencyKeys"
	defaultPurgeLimit = 100
)

// FirestoreStore keeps keys in a Firestore collection. Each mutation runs in a transaction
// so replicas racing on one key agree on a single owner.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
	attempts   int
}

type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name.
func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name = strings.TrimSpace(name); name != "" {
			s.collection = name
		}
	}
}

// WithMaxAttempts caps transaction retries.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(s *FirestoreStore) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	s := &FirestoreStore{provider: provider, collection: defaultCollection, attempts: 5}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// txStep sees the stored entry for a claim inside a transaction.
type txStep func(tx *firestore.Transaction, ref *firestore.DocumentRef, current Entry, found bool) error

func (s *FirestoreStore) withEntry(ctx context.Context, claim Claim, step txStep) error {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	ref := client.Collection(s.collection).Doc(claim.docID())
	return s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, found, err := readEntry(tx, ref)
		if err != nil {
			return err
		}
		return step(tx, ref, current, found)
	}, pfirestore.WithTxAttempts(s.attempts))
}

func (s *FirestoreStore) Acquire(ctx context.Context, claim Claim, now time.Time) (Reservation, error) {
	var res Reservation
	err := s.withEntry(ctx, claim, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current Entry, found bool) error {
		decided, write, err := arbitrate(current, found, claim, now.UTC())
		if err != nil {
			return err
		}
		res = decided
		if write {
			return tx.Set(ref, toEntryDoc(decided.Entry))
		}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

func (s *FirestoreStore) Complete(ctx context.Context, claim Claim, resp Response, now time.Time) error {
	return s.withEntry(ctx, claim, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current Entry, found bool) error {
		entry, err := settle(current, found, claim, resp, now.UTC())
		if err != nil {
			return err
		}
		return tx.Set(ref, toEntryDoc(entry))
	})
}

func (s *FirestoreStore) Abandon(ctx context.Context, claim Claim) error {
	return s.withEntry(ctx, claim, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current Entry, found bool) error {
		if !found || !abandonable(current, claim) {
			return nil
		}
		return tx.Delete(ref)
	})
}

// Purge removes one batch of expired keys through a BulkWriter.
func (s *FirestoreStore) Purge(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultPurgeLimit
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	expired, err := client.Collection(s.collection).
		Where("expiresAt", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, pfirestore.WrapError("idempotency.purge", err)
	}

	writer := client.BulkWriter(ctx)
	defer writer.End()
	for _, snap := range expired {
		if _, err := writer.Delete(snap.Ref); err != nil {
			return 0, pfirestore.WrapError("idempotency.purge", err)
		}
	}
	return len(expired), nil
}

func readEntry(tx *firestore.Transaction, ref *firestore.DocumentRef) (Entry, bool, error) {
	snap, err := tx.Get(ref)
	switch {
	case status.Code(err) == codes.NotFound:
		return Entry{}, false, nil
	case err != nil:
		return Entry{}, false, err
	}
	var doc entryDoc
	if err := snap.DataTo(&doc); err != nil {
		return Entry{}, false, err
	}
	return doc.entry(), true, nil
}

type entryDoc struct {
	Key         string              `firestore:"key"`
	Fingerprint string              `firestore:"fingerprint"`
	Status      string              `firestore:"status"`
	Code        int                 `firestore:"responseStatus"`
	Header      map[string][]string `firestore:"responseHeaders,omitempty"`
	Body        []byte              `firestore:"responseBody,omitempty"`
	CreatedAt   time.Time           `firestore:"createdAt"`
	UpdatedAt   time.Time           `firestore:"updatedAt"`
	ExpiresAt   time.Time           `firestore:"expiresAt"`
}

func toEntryDoc(e Entry) entryDoc {
	return entryDoc{
		Key: e.Key, Fingerprint: e.Fingerprint, Status: string(e.Status),
		Code: e.Code, Header: e.Header, Body: e.Body,
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt, ExpiresAt: e.ExpiresAt,
	}
}

func (d entryDoc) entry() Entry {
	return Entry{
		Key: d.Key, Fingerprint: d.Fingerprint, Status: Status(d.Status),
		Code: d.Code, Header: d.Header, Body: d.Body,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, ExpiresAt: d.ExpiresAt,
	}
}
