// Package store is the persistent key/value layer under the cart, wishlist
// and adoption registry.
//
// A Store is synchronous: Set returns only after the value is durable in the
// backend. Values are JSON documents and must round-trip unchanged.
package store

import (
	"context"
	"errors"
)

// Keys owned by the storefront containers. Each key has exactly one owner.
const (
	KeyCart         = "cartItems"
	KeyWishlist     = "wishlist"
	KeyApplications = "adoptionApplications"
	KeyUserID       = "userId"
)

var ErrClosed = errors.New("store: closed")

// Store loads and saves one string value per key.
type Store interface {
	// Get returns ok=false with a nil error when the key has never been set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Backend is a Store that owns a connection the process must release.
type Backend interface {
	Store
	Close() error
}
