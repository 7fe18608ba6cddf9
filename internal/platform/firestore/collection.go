package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Codec maps an entity to and from its stored document shape.
type Codec[T any] struct {
	Encode func(T) any
	Decode func(*firestore.DocumentSnapshot) (T, error)
}

// Doc pairs a decoded entity with its document id.
type Doc[T any] struct {
	ID   string
	Data T
}

// Collection is a typed view over one Firestore collection.
type Collection[T any] struct {
	provider *Provider
	name     string
	codec    Codec[T]
}

// NewCollection binds codec to the named collection.
func NewCollection[T any](provider *Provider, name string, codec Codec[T]) (*Collection[T], error) {
	name = strings.TrimSpace(name)
	switch {
	case provider == nil:
		return nil, errors.New("firestore: provider is required")
	case name == "":
		return nil, errors.New("firestore: collection name is required")
	case codec.Encode == nil || codec.Decode == nil:
		return nil, fmt.Errorf("firestore: codec for %s is incomplete", name)
	}
	return &Collection[T]{provider: provider, name: name, codec: codec}, nil
}

// Provider exposes the owning provider, typically for transactions.
func (c *Collection[T]) Provider() *Provider { return c.provider }

// Ref returns the document reference for id.
func (c *Collection[T]) Ref(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("ref"), errors.New("document id is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name).Doc(id), nil
}

// Get reads and decodes one document.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return c.Decode(snap)
}

// Create inserts value under id; an existing document yields a conflict.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, c.codec.Encode(value)); err != nil {
		return WrapError(c.op("create"), err)
	}
	return nil
}

// Query runs build against the collection and decodes every result.
func (c *Collection[T]) Query(ctx context.Context, build func(firestore.Query) firestore.Query) ([]Doc[T], error) {
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	query := client.Collection(c.name).Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Doc[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		value, err := c.Decode(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Doc[T]{ID: snap.Ref.ID, Data: value})
	}
}

// Encode returns the stored shape of value, for writes made inside transactions.
func (c *Collection[T]) Encode(value T) any {
	return c.codec.Encode(value)
}

// Decode hydrates snap.
func (c *Collection[T]) Decode(snap *firestore.DocumentSnapshot) (T, error) {
	value, err := c.codec.Decode(snap)
	if err != nil {
		return value, fmt.Errorf("firestore: decode %s/%s: %w", c.name, snap.Ref.ID, err)
	}
	return value, nil
}

func (c *Collection[T]) op(action string) string {
	return c.name + "." + action
}
