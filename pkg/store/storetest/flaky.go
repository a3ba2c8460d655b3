// Package storetest provides Store doubles for container tests.
package storetest

import (
	"context"
	"errors"
	"sync"

	"julianmorley.ca/con-plar/petstore/pkg/store"
)

var ErrInjected = errors.New("storetest: injected failure")

// Flaky wraps a store and fails reads or writes on demand. It counts writes
// per key so tests can assert write-through behaviour.
type Flaky struct {
	store.Store

	mu         sync.Mutex
	failWrites bool
	failReads  bool
	writes     map[string]int
}

func NewFlaky(inner store.Store) *Flaky {
	if inner == nil {
		inner = store.NewMemory()
	}
	return &Flaky{Store: inner, writes: map[string]int{}}
}

func (f *Flaky) FailWrites(fail bool) {
	f.mu.Lock()
	f.failWrites = fail
	f.mu.Unlock()
}

func (f *Flaky) FailReads(fail bool) {
	f.mu.Lock()
	f.failReads = fail
	f.mu.Unlock()
}

// Writes returns how many Set calls reached key, failed ones included.
func (f *Flaky) Writes(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[key]
}

func (f *Flaky) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failReads
	f.mu.Unlock()
	if fail {
		return "", false, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *Flaky) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.writes[key]++
	fail := f.failWrites
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Store.Set(ctx, key, value)
}
