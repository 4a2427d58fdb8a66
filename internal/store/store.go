// Package store is the single source of truth for medications, appointments,
// activities, emergency info and settings. Every mutation goes through Update,
// which serializes writers, restores the ordering invariants and persists the
// snapshot to the injected kv store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carevox/internal/kv"
)

var dataKey = kv.Key{"carevox", "data"}

type Store struct {
	mu   sync.Mutex
	data Data

	kv  kv.Store
	loc *time.Location
	log *slog.Logger
}

type Options struct {
	// Location resolves appointment instants. Defaults to time.Local.
	Location *time.Location
	Logger   *slog.Logger
}

// Open loads the persisted snapshot, or starts from Initial when none exists.
func Open(ctx context.Context, backend kv.Store, opt Options) (*Store, error) {
	s := &Store{
		kv:  backend,
		loc: opt.Location,
		log: opt.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	raw, err := backend.Get(ctx, dataKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		s.data = Initial()
		s.log.Debug("No stored data, starting fresh")
	case err != nil:
		return nil, fmt.Errorf("load data: %w", err)
	default:
		var d Data
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
		if !d.Settings.Valid() {
			d.Settings = Initial().Settings
		}
		s.data = d
	}
	s.data.normalize(s.loc)

	return s, nil
}

func (s *Store) Location() *time.Location {
	return s.loc
}

// Get returns a deep copy of the current snapshot.
func (s *Store) Get() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Update applies fn to a copy of the snapshot and installs the result. The
// new snapshot stays in memory even when persisting it fails; the error is
// returned so callers can report it.
func (s *Store) Update(fn func(Data) Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.data.Clone())
	next.normalize(s.loc)
	s.data = next

	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}
	if err := s.kv.Set(context.Background(), dataKey, raw); err != nil {
		return fmt.Errorf("persist data: %w", err)
	}
	return nil
}
