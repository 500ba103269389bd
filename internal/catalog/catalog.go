// Package catalog provides product price lookup for cart enrichment.
// It stands in for the product-feed integration: the lifecycle engine only
// needs a unit price and currency per item id.
package catalog

import (
	"errors"
	"sync"
)

// ErrProductNotFound is returned when an item id has no catalog entry.
var ErrProductNotFound = errors.New("product not found")

// Price is a unit price in minor currency units plus its lowercase ISO
// currency code.
type Price struct {
	UnitCents int64
	Currency  string
}

// Product is a catalog entry.
type Product struct {
	ID    string
	Title string
	Price Price
}

// Repository defines methods for product price lookup.
type Repository interface {
	// FindPrice returns the unit price for an item id.
	// Returns ErrProductNotFound if the item has no catalog entry.
	FindPrice(itemID string) (Price, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewInMemoryRepository creates a new in-memory catalog seeded with the given
// products.
func NewInMemoryRepository(products ...Product) *InMemoryRepository {
	repo := &InMemoryRepository{
		products: make(map[string]Product, len(products)),
	}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

// Seed adds or replaces catalog entries.
func (r *InMemoryRepository) Seed(products ...Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range products {
		r.products[p.ID] = p
	}
}

// FindPrice returns the unit price for an item id.
func (r *InMemoryRepository) FindPrice(itemID string) (Price, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[itemID]
	if !ok {
		return Price{}, ErrProductNotFound
	}
	return p.Price, nil
}
