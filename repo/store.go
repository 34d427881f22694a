package repo

import "context"

// Store is the key/value persistence the bot needs. Get reports found=false
// for a missing key rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
