package stock

import (
	"context"
	"strings"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// Read-only projections. None of these take locks or feed back into a
// mutation.

// GetItem returns a registry row.
func (e *Engine) GetItem(ctx context.Context, id string) (*model.Item, error) {
	it, err := store.GetItem(ctx, e.db, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, errorf(KindNotFound, "item %s not found", id)
	}
	return it, nil
}

// ListItems returns registry rows matching the filter.
func (e *Engine) ListItems(ctx context.Context, f store.ItemFilter) ([]model.Item, error) {
	f.ForUpdate = false
	return store.ListItems(ctx, e.db, f)
}

// ItemHistory returns the ledger entries of one item, oldest first.
func (e *Engine) ItemHistory(ctx context.Context, id string) ([]model.LedgerEntry, error) {
	if _, err := e.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return store.ItemHistory(ctx, e.db, strings.TrimSpace(id))
}

// ListLedger returns ledger entries matching the filter, newest first.
func (e *Engine) ListLedger(ctx context.Context, f store.LedgerFilter) ([]model.LedgerEntry, error) {
	return store.ListLedger(ctx, e.db, f)
}

// GetProposal returns a transfer proposal with its lines.
func (e *Engine) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	prop, err := store.GetProposal(ctx, e.db, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, errorf(KindNotFound, "transfer %s not found", id)
	}
	return prop, nil
}

// ListProposals returns proposals matching the filter, newest first.
func (e *Engine) ListProposals(ctx context.Context, f store.ProposalFilter) ([]model.Proposal, error) {
	return store.ListProposals(ctx, e.db, f)
}

// StockByLocation aggregates what a location holds.
func (e *Engine) StockByLocation(ctx context.Context, locationID int64) ([]model.StockLevel, error) {
	return e.stockOf(ctx, locationID, model.OwnerTypeLocation)
}

// StockByHolder aggregates what a technician holds.
func (e *Engine) StockByHolder(ctx context.Context, holderID int64) ([]model.StockLevel, error) {
	return e.stockOf(ctx, holderID, model.OwnerTypeTechnician)
}

func (e *Engine) stockOf(ctx context.Context, ownerID int64, ownerType string) ([]model.StockLevel, error) {
	o, err := store.GetOwner(ctx, e.db, ownerID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errorf(KindNotFound, "%s %d not found", ownerType, ownerID)
	}
	if o.Type != ownerType {
		return nil, errorf(KindInvalidInput, "owner %d is a %s, not a %s", ownerID, o.Type, ownerType)
	}
	return store.StockByOwner(ctx, e.db, ownerID)
}

// DefinitionTotals returns the system-wide quantity of a definition per
// status.
func (e *Engine) DefinitionTotals(ctx context.Context, definitionID int64) ([]model.DefinitionTotal, error) {
	def, err := store.GetDefinition(ctx, e.db, definitionID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errorf(KindNotFound, "definition %d not found", definitionID)
	}
	return store.DefinitionTotals(ctx, e.db, definitionID)
}
