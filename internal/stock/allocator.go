package stock

import (
	"sort"

	"github.com/erazemk/zaloga/internal/model"
)

// Draw is the quantity taken from one lot.
type Draw struct {
	ItemID   string
	Quantity int
}

// Allocate selects which lots satisfy a requested material quantity.
// Reserved and empty lots are skipped. Candidates are drawn largest first;
// equal quantities go oldest first, then by ID. The draws sum to requested
// exactly, or Allocate fails with ErrInsufficientStock. The input slice is
// not modified.
func Allocate(lots []model.Item, requested int) ([]Draw, error) {
	if requested <= 0 {
		return nil, errorf(KindInvalidInput, "quantity must be positive, got %d", requested)
	}

	candidates := make([]model.Item, 0, len(lots))
	available := 0
	for _, lot := range lots {
		if lot.Reserved || lot.Quantity <= 0 {
			continue
		}
		candidates = append(candidates, lot)
		available += lot.Quantity
	}
	if available < requested {
		return nil, errorf(KindInsufficientStock, "requested %d, only %d available", requested, available)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	var draws []Draw
	remaining := requested
	for _, lot := range candidates {
		if remaining == 0 {
			break
		}
		n := min(lot.Quantity, remaining)
		draws = append(draws, Draw{ItemID: lot.ID, Quantity: n})
		remaining -= n
	}
	return draws, nil
}

// unreservedTotal sums the quantity of lots not held by a proposal.
func unreservedTotal(lots []*model.Item) int {
	n := 0
	for _, lot := range lots {
		if !lot.Reserved {
			n += lot.Quantity
		}
	}
	return n
}

// heldTotal sums the quantity of all lots, reserved or not.
func heldTotal(lots []*model.Item) int {
	n := 0
	for _, lot := range lots {
		n += lot.Quantity
	}
	return n
}
