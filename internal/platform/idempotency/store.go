package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"
)

// DefaultTTL is how long keys are remembered when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// ErrFingerprintMismatch is returned when a key is reused for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for a different request")

// Status is the lifecycle state of a stored key.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Outcome tells the middleware what to do after Acquire.
type Outcome int

const (
	// Acquired means the caller owns the key and runs the handler.
	Acquired Outcome = iota
	// Replay means a completed response is stored for this key.
	Replay
	// InFlight means another request holds the key.
	InFlight
)

// Claim is one request's attempt at a scoped key.
type Claim struct {
	Key         string
	Fingerprint string
	TTL         time.Duration
}

func (c Claim) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultTTL
	}
	return c.TTL
}

// docID derives a storage-safe identifier from the scoped key.
func (c Claim) docID() string {
	return digest([]byte(strings.TrimSpace(c.Key)))
}

// Entry is a persisted key together with the response it produced.
type Entry struct {
	Key         string
	Fingerprint string
	Status      Status
	Code        int
	Header      map[string][]string
	Body        []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the entry may be reclaimed at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Reservation is the result of Store.Acquire.
type Reservation struct {
	Outcome Outcome
	Entry   Entry
}

// Response is what the middleware captured from the wrapped handler.
type Response struct {
	Code   int
	Header http.Header
	Body   []byte
}

// Store persists key reservations and the responses they produced.
type Store interface {
	Acquire(ctx context.Context, claim Claim, now time.Time) (Reservation, error)
	Complete(ctx context.Context, claim Claim, resp Response, now time.Time) error
	// Abandon drops a pending reservation so the client may retry with the same key.
	Abandon(ctx context.Context, claim Claim) error
	// Purge deletes up to limit expired keys and reports how many went.
	Purge(ctx context.Context, now time.Time, limit int) (int, error)
}

// arbitrate decides an Acquire against the currently stored entry. When the
// second result is true the returned entry must be written back.
func arbitrate(current Entry, found bool, claim Claim, now time.Time) (Reservation, bool, error) {
	if !found || current.Expired(now) {
		entry := Entry{
			Key:         claim.Key,
			Fingerprint: claim.Fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(claim.ttl()),
		}
		return Reservation{Outcome: Acquired, Entry: entry}, true, nil
	}
	if current.Fingerprint != claim.Fingerprint {
		return Reservation{}, false, ErrFingerprintMismatch
	}
	if current.Status == StatusCompleted {
		return Reservation{Outcome: Replay, Entry: current}, false, nil
	}
	return Reservation{Outcome: InFlight, Entry: current}, false, nil
}

// settle folds resp into the stored entry, creating one if the reservation vanished.
func settle(current Entry, found bool, claim Claim, resp Response, now time.Time) (Entry, error) {
	if found && current.Fingerprint != claim.Fingerprint {
		return Entry{}, ErrFingerprintMismatch
	}
	if !found {
		current = Entry{Key: claim.Key, Fingerprint: claim.Fingerprint, CreatedAt: now}
	}
	current.Status = StatusCompleted
	current.Code = resp.Code
	current.Header = storableHeader(resp.Header)
	current.Body = slices.Clone(resp.Body)
	current.UpdatedAt = now
	current.ExpiresAt = now.Add(claim.ttl())
	return current, nil
}

// abandonable reports whether Abandon may delete current on behalf of claim.
func abandonable(current Entry, claim Claim) bool {
	return current.Fingerprint == claim.Fingerprint && current.Status == StatusPending
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// unstoredHeaders are connection-specific or must not be replayed to another request.
var unstoredHeaders = []string{
	"Connection", "Content-Length", "Date", "Keep-Alive", "Proxy-Authenticate",
	"Proxy-Authorization", "Set-Cookie", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

func storableHeader(header http.Header) map[string][]string {
	out := maps.Clone(map[string][]string(header))
	maps.DeleteFunc(out, func(name string, _ []string) bool {
		return slices.Contains(unstoredHeaders, http.CanonicalHeaderKey(name))
	})
	if len(out) == 0 {
		return nil
	}
	return out
}
