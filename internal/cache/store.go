// Package cache persists provider responses keyed by namespace and key. There
// is no expiry: entries live until overwritten or until their namespace is
// cleared by an operator.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"time"
)

type Entry struct {
	Value     json.RawMessage `json:"value"`
	WrittenAt time.Time       `json:"writtenAt"`
}

// Store is implemented by every cache backend. Writes are not transactional:
// two concurrent misses may both write, and the last write wins.
type Store interface {
	Get(ctx context.Context, namespace, key string) (Entry, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Clear(ctx context.Context, namespace string) error
	// Stats returns the number of entries per namespace.
	Stats(ctx context.Context) (map[string]int, error)
	Close() error
}

var ErrBadNamespace = errors.New("namespace must match [a-z0-9_-]+")

var namespaceRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

func checkNamespace(ns string) error {
	if !namespaceRe.MatchString(ns) {
		return ErrBadNamespace
	}
	return nil
}
