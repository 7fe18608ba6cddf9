package firestore

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/config"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{code: codes.NotFound, notFound: true},
		{code: codes.AlreadyExists, conflict: true},
		{code: codes.FailedPrecondition, conflict: true},
		{code: codes.Aborted, conflict: true},
		{code: codes.Unavailable, unavailable: true},
		{code: codes.ResourceExhausted, unavailable: true},
		{code: codes.PermissionDenied},
	}

	for _, tc := range cases {
		err := WrapError("pageSeo.create", status.Error(tc.code, "boom"))
		var repoErr *Error
		if !errors.As(err, &repoErr) {
			t.Fatalf("%s: expected *Error, got %T", tc.code, err)
		}
		if repoErr.IsNotFound() != tc.notFound || repoErr.IsConflict() != tc.conflict || repoErr.IsUnavailable() != tc.unavailable {
			t.Fatalf("%s: unexpected classification %+v", tc.code, repoErr)
		}
		if status.Code(errors.Unwrap(err)) != tc.code {
			t.Fatalf("%s: expected underlying status to be preserved", tc.code)
		}
	}
}

func TestWrapErrorPassesThroughCancellation(t *testing.T) {
	if err := WrapError("quotes.query", status.Error(codes.Canceled, "client went away")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("quotes.query", status.Error(codes.DeadlineExceeded, "slow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if err := WrapError("quotes.query", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestWrapErrorKeepsExistingOperation(t *testing.T) {
	inner := WrapError("pageSeo.get", status.Error(codes.NotFound, "missing"))
	outer := WrapError("transaction", inner)
	if outer.Error() != inner.Error() {
		t.Fatalf("expected operation to be preserved, got %q", outer.Error())
	}
}

func TestConflictIsClassified(t *testing.T) {
	err := Conflict("pageSeo.update", "page \"/\" was modified concurrently")
	var repoErr *Error
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if err.Error() != "pageSeo.update: page \"/\" was modified concurrently" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNewCollectionValidatesArguments(t *testing.T) {
	codec := Codec[string]{
		Encode: func(s string) any { return map[string]any{"v": s} },
		Decode: func(*firestore.DocumentSnapshot) (string, error) { return "", nil },
	}
	provider := NewProvider(config.FirestoreConfig{ProjectID: "site-test"})

	if _, err := NewCollection[string](nil, "pages", codec); err == nil {
		t.Fatal("expected error for nil provider")
	}
	if _, err := NewCollection(provider, "  ", codec); err == nil {
		t.Fatal("expected error for blank collection")
	}
	if _, err := NewCollection(provider, "pages", Codec[string]{}); err == nil {
		t.Fatal("expected error for incomplete codec")
	}
	coll, err := NewCollection(provider, "pages", codec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coll.Provider() != provider {
		t.Fatal("expected collection to expose its provider")
	}
	if _, err := coll.Ref(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty document id")
	}
}

func TestProviderClosedRejectsClients(t *testing.T) {
	provider := NewProvider(config.FirestoreConfig{ProjectID: "site-test"})
	if err := provider.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := provider.Client(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
}
