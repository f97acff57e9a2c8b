// Package identity resolves the persistent anonymous visitor id that is
// attached to every automation backend call.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StorageKey is the single key the visitor id is persisted under.
const StorageKey = "user-session-id"

var ErrNotFound = errors.New("identity: key not found")

// Storage is a durable key/value capability. Get returns ErrNotFound for a missing key.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Resolve returns the stored visitor id, generating and persisting a new UUIDv4 on first use.
// An existing id is never rotated.
func Resolve(ctx context.Context, store Storage) (string, error) {
	id, err := store.Get(ctx, StorageKey)
	switch {
	case err == nil && strings.TrimSpace(id) != "":
		return id, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return "", fmt.Errorf("read identity: %w", err)
	}

	id = uuid.NewString()
	if err := store.Set(ctx, StorageKey, id); err != nil {
		return "", fmt.Errorf("persist identity: %w", err)
	}
	return id, nil
}

type ctxKey struct{}

// WithID attaches a resolved visitor id to ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the visitor id stored by WithID.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
