package store

import (
	"context"

	"github.com/google/uuid"

	"julianmorley.ca/con-plar/petstore/pkg/errs"
)

// UserID returns the stable id used to tag orders, creating and persisting
// one on first use.
func UserID(ctx context.Context, s Store) (string, error) {
	id, ok, err := s.Get(ctx, KeyUserID)
	if err != nil {
		return "", &errs.PersistenceError{Op: "read", Key: KeyUserID, Cause: err}
	}
	if ok && id != "" {
		return id, nil
	}

	id = "user_" + uuid.NewString()
	if err := s.Set(ctx, KeyUserID, id); err != nil {
		return "", &errs.PersistenceError{Op: "write", Key: KeyUserID, Cause: err}
	}
	return id, nil
}
