package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is an acquired advisory lock on a (kind, key) pair. Release() must be
// called exactly once.
type Lock struct {
	fl *flock.Flock
}

// LockExclusive acquires the named lock for kind/key, blocking until it's
// available or ctx is done. It guarantees at-most-one holder per key across
// every process sharing this store root.
func (s *Store) LockExclusive(ctx context.Context, kind Kind, key string) (*Lock, error) {
	path := filepath.Join(s.root, "locks", fmt.Sprintf("%s-%s.lock", kind, sanitizeLockKey(key)))
	fl := flock.New(path)

	ok, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s lock for %s: %w", kind, key, err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to acquire %s lock for %s: context done", kind, key)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

func sanitizeLockKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
