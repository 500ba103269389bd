package catalog

import "testing"

// TestFindPrice tests lookup of seeded products and the not-found case.
func TestFindPrice(t *testing.T) {
	repo := NewInMemoryRepository(
		Product{ID: "sku1", Title: "Sticker Pack", Price: Price{UnitCents: 500, Currency: "usd"}},
		Product{ID: "sku2", Title: "Tote Bag", Price: Price{UnitCents: 1500, Currency: "usd"}},
	)

	price, err := repo.FindPrice("sku1")
	if err != nil {
		t.Fatalf("FindPrice failed: %v", err)
	}
	if price.UnitCents != 500 || price.Currency != "usd" {
		t.Errorf("unexpected price: %+v", price)
	}

	if _, err := repo.FindPrice("sku_missing"); err != ErrProductNotFound {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

// TestSeed_ReplacesEntry tests that seeding the same id replaces the price.
func TestSeed_ReplacesEntry(t *testing.T) {
	repo := NewInMemoryRepository(
		Product{ID: "sku1", Price: Price{UnitCents: 500, Currency: "usd"}},
	)
	repo.Seed(Product{ID: "sku1", Price: Price{UnitCents: 700, Currency: "eur"}})

	price, err := repo.FindPrice("sku1")
	if err != nil {
		t.Fatalf("FindPrice failed: %v", err)
	}
	if price.UnitCents != 700 || price.Currency != "eur" {
		t.Errorf("expected replaced price, got %+v", price)
	}
}
