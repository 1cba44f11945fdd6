// Package mirrortest provides an in-memory Mirror for tests.
package mirrortest

import (
	"context"
	"encoding/json"
	"maps"
	"sync"
)

// Fake is a goroutine-safe in-memory mirror. Set FetchErr or UpsertErr to
// simulate an unreachable remote.
type Fake struct {
	mu        sync.Mutex
	rows      map[string]json.RawMessage
	upserts   []string
	closed    bool
	FetchErr  error
	UpsertErr error
}

// New returns a fake seeded with rows.
func New(rows map[string]json.RawMessage) *Fake {
	f := &Fake{rows: make(map[string]json.RawMessage)}
	maps.Copy(f.rows, rows)
	return f
}

func (f *Fake) FetchAll(context.Context) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	return maps.Clone(f.rows), nil
}

func (f *Fake) Upsert(_ context.Context, key string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, key)
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	f.rows[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Row returns the stored value for key.
func (f *Fake) Row(key string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[key]
	return v, ok
}

// Upserts lists the keys of every upsert attempt in call order.
func (f *Fake) Upserts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.upserts...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
