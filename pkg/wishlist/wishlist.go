// Package wishlist owns the set of saved products. It is independent of the
// cart except for MoveToCart.
package wishlist

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/errs"
	"julianmorley.ca/con-plar/petstore/pkg/models"
	"julianmorley.ca/con-plar/petstore/pkg/store"
)

// CartAdder is the part of the cart MoveToCart needs.
type CartAdder interface {
	AddToCart(ctx context.Context, product models.Product) error
}

type Wishlist struct {
	mu    sync.RWMutex
	store store.Store
	items []models.Product
}

// New rehydrates the wishlist from s, starting empty on any read failure.
func New(ctx context.Context, s store.Store) *Wishlist {
	w := &Wishlist{store: s}

	var saved []models.Product
	ok, err := store.LoadJSON(ctx, s, store.KeyWishlist, &saved)
	if err != nil {
		log.WithError(err).WithField("key", store.KeyWishlist).Warn("Could not rehydrate wishlist, starting empty")
		return w
	}
	if !ok {
		return w
	}

	seen := make(map[string]bool, len(saved))
	for _, p := range saved {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		w.items = append(w.items, p)
	}
	return w
}

// Toggle adds product when absent and removes it when present. It returns
// whether the product is in the wishlist afterwards.
func (w *Wishlist) Toggle(ctx context.Context, product models.Product) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	present := false
	if i := w.indexOf(product.ID); i >= 0 {
		w.removeAt(i)
	} else {
		w.items = append(w.items, product)
		present = true
	}
	return present, w.persist(ctx)
}

func (w *Wishlist) IsInWishlist(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.indexOf(id) >= 0
}

// RemoveFromWishlist is a no-op for unknown ids.
func (w *Wishlist) RemoveFromWishlist(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexOf(id)
	if i < 0 {
		return nil
	}
	w.removeAt(i)
	return w.persist(ctx)
}

// MoveToCart adds the saved product to cart and then drops it from the
// wishlist. If the cart cannot take the product the wishlist is untouched.
func (w *Wishlist) MoveToCart(ctx context.Context, id string, cart CartAdder) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexOf(id)
	if i < 0 {
		return &errs.NotFoundError{Resource: "wishlist item", ID: id}
	}
	product := w.items[i]

	// A cart persistence failure still leaves the line in the cart, so the
	// move completes and the write failure is reported.
	cartErr := cart.AddToCart(ctx, product)
	if cartErr != nil && !errs.IsPersistence(cartErr) {
		return cartErr
	}

	w.removeAt(i)
	if err := w.persist(ctx); err != nil {
		return err
	}
	return cartErr
}

func (w *Wishlist) Items() []models.Product {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.Product, len(w.items))
	copy(out, w.items)
	return out
}

func (w *Wishlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.items)
}

func (w *Wishlist) indexOf(id string) int {
	for i := range w.items {
		if w.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (w *Wishlist) removeAt(i int) {
	w.items = append(w.items[:i:i], w.items[i+1:]...)
}

func (w *Wishlist) persist(ctx context.Context) error {
	snapshot := w.items
	if snapshot == nil {
		snapshot = []models.Product{}
	}
	if err := store.SaveJSON(ctx, w.store, store.KeyWishlist, snapshot); err != nil {
		log.WithError(err).WithField("items", len(snapshot)).Error("Failed to persist wishlist")
		return err
	}
	return nil
}
