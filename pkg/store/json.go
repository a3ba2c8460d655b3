package store

import (
	"context"
	"encoding/json"
	"fmt"

	"julianmorley.ca/con-plar/petstore/pkg/errs"
	"julianmorley.ca/con-plar/petstore/pkg/metrics"
)

// LoadJSON decodes the value at key into dst. It reports ok=false when the
// key is absent. Read and decode failures come back as *errs.PersistenceError.
func LoadJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, &errs.PersistenceError{Op: "read", Key: key, Cause: err}
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, &errs.PersistenceError{Op: "decode", Key: key, Cause: err}
	}
	return true, nil
}

// SaveJSON encodes v and writes it at key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &errs.PersistenceError{Op: "encode", Key: key, Cause: fmt.Errorf("marshal: %w", err)}
	}
	if err := s.Set(ctx, key, string(raw)); err != nil {
		metrics.StoreWriteFailures.WithLabelValues(key).Inc()
		return &errs.PersistenceError{Op: "write", Key: key, Cause: err}
	}
	return nil
}
