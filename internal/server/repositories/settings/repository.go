// Package settings declares and implements the config store: a key/value
// table holding service-wide flags such as is_setup.
package settings

import "context"

type Repository interface {
	// Get returns common.ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set upserts key.
	Set(ctx context.Context, key, value string) error

	// Lock makes sure the row for key exists and holds its write lock until
	// the surrounding transaction ends. Concurrent lockers of the same key
	// queue behind each other.
	Lock(ctx context.Context, key string) error
}
