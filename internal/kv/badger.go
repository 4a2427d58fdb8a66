package kv

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

type Badger struct {
	db *badger.DB
}

type BadgerOptions struct {
	Dir      string
	InMemory bool
}

func OpenBadger(opt BadgerOptions) (*Badger, error) {
	if !opt.InMemory && opt.Dir == "" {
		return nil, errors.New("kv: badger dir is required")
	}

	dbOpts := badger.DefaultOptions(opt.Dir).
		WithInMemory(opt.InMemory).
		WithLogger(slogLogger{})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key Key) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (b *Badger) Set(_ context.Context, key Key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.String()), value)
	})
}

func (b *Badger) Delete(_ context.Context, key Key) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key.String()))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// slogLogger routes badger warnings and errors into slog; info and debug are dropped.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...any)   { log.Error("badger: " + fmt.Sprintf(f, v...)) }
func (slogLogger) Warningf(f string, v ...any) { log.Warn("badger: " + fmt.Sprintf(f, v...)) }
func (slogLogger) Infof(string, ...any)        {}
func (slogLogger) Debugf(string, ...any)       {}
