package store

import (
	"context"
	"testing"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

func TestStockByOwnerAggregatesLots(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	loc := mustOwner(t, database, "Warehouse", model.OwnerTypeLocation)
	def := mustDefinition(t, database, model.KindMaterial, "Cable")
	mustLot(t, database, def, loc, model.StatusAvailable, 5)
	mustLot(t, database, def, loc, model.StatusAvailable, 3)
	mustLot(t, database, def, loc, model.StatusAvailable, 0)

	levels, err := StockByOwner(ctx, database, loc.ID)
	if err != nil {
		t.Fatalf("StockByOwner: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("expected 1 stock row, got %d", len(levels))
	}
	if levels[0].Quantity != 8 || levels[0].Reserved != 0 {
		t.Errorf("expected 8 unreserved, got %+v", levels[0])
	}
	if levels[0].OwnerName != "Warehouse" || levels[0].Name != "Cable" {
		t.Errorf("expected joined names, got %+v", levels[0])
	}
}

func TestStockCountsReserved(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustOwner(t, database, "Alice", model.OwnerTypeTechnician)
	b := mustOwner(t, database, "Bob", model.OwnerTypeTechnician)
	def := mustDefinition(t, database, model.KindMaterial, "Cable")
	mustLot(t, database, def, a, model.StatusAssigned, 6)
	held := mustLot(t, database, def, a, model.StatusAssigned, 4)

	p := &model.Proposal{ID: testID("prop"), ScopeType: a.Type, FromOwnerID: a.ID, ToOwnerID: b.ID,
		Status: model.ProposalPending, CreatedBy: 1, CreatedAt: held.CreatedAt}
	if err := InsertProposal(ctx, database, p); err != nil {
		t.Fatalf("InsertProposal: %v", err)
	}
	held.Reserved, held.ReservedBy = true, p.ID
	if err := UpdateItem(ctx, database, held); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	levels, _ := StockByOwner(ctx, database, a.ID)
	if len(levels) != 1 || levels[0].Quantity != 10 || levels[0].Reserved != 4 {
		t.Errorf("expected 10 held with 4 reserved, got %+v", levels)
	}
}

func TestDistributionAndTotals(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	loc1 := mustOwner(t, database, "Warehouse A", model.OwnerTypeLocation)
	loc2 := mustOwner(t, database, "Warehouse B", model.OwnerTypeLocation)
	tech := mustOwner(t, database, "Alice", model.OwnerTypeTechnician)
	def := mustDefinition(t, database, model.KindMaterial, "Cable")
	mustLot(t, database, def, loc1, model.StatusAvailable, 5)
	mustLot(t, database, def, loc2, model.StatusAvailable, 3)
	mustLot(t, database, def, tech, model.StatusAssigned, 2)
	mustLot(t, database, def, loc1, model.StatusReturnedToOperator, 7)

	dist, _ := GetDefinitionDistribution(ctx, database, def.ID)
	if len(dist) != 3 {
		t.Fatalf("expected 3 distribution rows, got %d", len(dist))
	}
	total := 0
	for _, d := range dist {
		total += d.Quantity
	}
	if total != 10 {
		t.Errorf("expected live total 10, got %d", total)
	}

	all, _ := ListStock(ctx, database)
	if len(all) != 3 {
		t.Errorf("expected 3 stock rows overall, got %d", len(all))
	}

	totals, _ := DefinitionTotals(ctx, database, def.ID)
	byStatus := map[model.ItemStatus]int{}
	for _, tt := range totals {
		byStatus[tt.Status] = tt.Quantity
	}
	if byStatus[model.StatusAvailable] != 8 || byStatus[model.StatusAssigned] != 2 || byStatus[model.StatusReturnedToOperator] != 7 {
		t.Errorf("unexpected totals: %v", byStatus)
	}
}
