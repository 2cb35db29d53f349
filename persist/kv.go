package persist

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("persist: key not found")
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("persist: backend unavailable")
	// ErrEmptyKey is returned for blank keys.
	ErrEmptyKey = errors.New("persist: empty key")
)

// KV is a durable key-value store. Implementations must be safe for
// concurrent use; Delete of a missing key is not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func cloneValue(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
