// Package kv is the durable key-value layer behind the domain store.
// Keys are path segments joined with ':'.
package kv

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("kv: not found")

type Key []string

func (k Key) String() string {
	return strings.Join(k, ":")
}

type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	Close() error
}
