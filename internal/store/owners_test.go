package store

import (
	"context"
	"testing"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

func TestCreateAndGetOwner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner, err := CreateOwner(ctx, database, "Central Warehouse", model.OwnerTypeLocation)
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	if owner.Name != "Central Warehouse" {
		t.Errorf("expected name 'Central Warehouse', got %q", owner.Name)
	}
	if owner.Type != model.OwnerTypeLocation {
		t.Errorf("expected type 'location', got %q", owner.Type)
	}

	got, _ := GetOwner(ctx, database, owner.ID)
	if got.Name != "Central Warehouse" {
		t.Errorf("expected name 'Central Warehouse', got %q", got.Name)
	}
}

func TestCreateOwnerInvalidType(t *testing.T) {
	database := db.NewTestDB(t)

	if _, err := CreateOwner(context.Background(), database, "Alice", "person"); err == nil {
		t.Error("expected error for unknown owner type")
	}
}

func TestListOwnersFilterByType(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateOwner(ctx, database, "Warehouse", model.OwnerTypeLocation)
	CreateOwner(ctx, database, "Alice", model.OwnerTypeTechnician)
	CreateOwner(ctx, database, "Van Depot", model.OwnerTypeLocation)

	all, _ := ListOwners(ctx, database, "")
	if len(all) != 3 {
		t.Errorf("expected 3 owners, got %d", len(all))
	}

	locations, _ := ListOwners(ctx, database, model.OwnerTypeLocation)
	if len(locations) != 2 {
		t.Errorf("expected 2 locations, got %d", len(locations))
	}

	technicians, _ := ListOwners(ctx, database, model.OwnerTypeTechnician)
	if len(technicians) != 1 {
		t.Errorf("expected 1 technician, got %d", len(technicians))
	}
}

func TestDeleteOwnerWithStockFails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	location := mustOwner(t, database, "Warehouse", model.OwnerTypeLocation)
	def := mustDefinition(t, database, model.KindMaterial, "Cable")
	mustLot(t, database, def, location, model.StatusAvailable, 5)

	if err := DeleteOwner(ctx, database, location.ID); err == nil {
		t.Error("expected error deleting owner with stock")
	}
}

func TestDeleteOwnerWithEmptyLots(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	location := mustOwner(t, database, "Warehouse", model.OwnerTypeLocation)
	def := mustDefinition(t, database, model.KindMaterial, "Cable")
	mustLot(t, database, def, location, model.StatusAvailable, 0)

	if err := DeleteOwner(ctx, database, location.ID); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}

	owners, _ := ListOwners(ctx, database, "")
	if len(owners) != 0 {
		t.Errorf("expected 0 owners after delete, got %d", len(owners))
	}
}
