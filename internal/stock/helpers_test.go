package stock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

type fixture struct {
	e     *Engine
	db    *db.DB
	actor Actor

	warehouse *model.Owner
	depot     *model.Owner
	alice     *model.Owner
	bob       *model.Owner

	cable  *model.Definition
	router *model.Definition
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	f := &fixture{
		e:     New(database, nil, opts...),
		db:    database,
		actor: Actor{ID: 1, Name: "admin"},
	}

	mustOwner := func(name, ownerType string) *model.Owner {
		o, err := store.CreateOwner(ctx, database, name, ownerType)
		if err != nil {
			t.Fatalf("CreateOwner: %v", err)
		}
		return o
	}
	f.warehouse = mustOwner("Warehouse", model.OwnerTypeLocation)
	f.depot = mustOwner("Depot", model.OwnerTypeLocation)
	f.alice = mustOwner("Alice", model.OwnerTypeTechnician)
	f.bob = mustOwner("Bob", model.OwnerTypeTechnician)

	var err error
	f.cable, err = store.CreateDefinition(ctx, database, model.KindMaterial, "Cable", "cabling", "m", "")
	if err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	f.router, err = store.CreateDefinition(ctx, database, model.KindDevice, "Router", "cpe", "", "")
	if err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	return f
}

func (f *fixture) receiveCable(t *testing.T, loc *model.Owner, qty int) {
	t.Helper()
	_, err := f.e.Receive(context.Background(), f.actor, loc.ID, []ReceiveLine{
		{Kind: model.KindMaterial, DefinitionID: f.cable.ID, Quantity: qty},
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
}

func (f *fixture) receiveRouter(t *testing.T, loc *model.Owner, serial string) *model.Item {
	t.Helper()
	items, err := f.e.Receive(context.Background(), f.actor, loc.ID, []ReceiveLine{
		{Kind: model.KindDevice, DefinitionID: f.router.ID, Serial: serial},
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 received item, got %d", len(items))
	}
	return &items[0]
}

// held returns the total quantity of a definition an owner holds in status.
func (f *fixture) held(t *testing.T, owner *model.Owner, def *model.Definition, status model.ItemStatus) int {
	t.Helper()
	items, err := store.ListItems(context.Background(), f.db, store.ItemFilter{
		DefinitionID: def.ID,
		OwnerID:      owner.ID,
		Statuses:     []model.ItemStatus{status},
	})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func (f *fixture) item(t *testing.T, id string) *model.Item {
	t.Helper()
	it, err := f.e.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	return it
}

func (f *fixture) ledger(t *testing.T, filter store.LedgerFilter) []model.LedgerEntry {
	t.Helper()
	entries, err := f.e.ListLedger(context.Background(), filter)
	if err != nil {
		t.Fatalf("ListLedger: %v", err)
	}
	return entries
}

func material(def *model.Definition, qty int) Line {
	return Line{Kind: model.KindMaterial, DefinitionID: def.ID, Quantity: qty}
}

func device(it *model.Item) Line {
	return Line{Kind: model.KindDevice, ItemID: it.ID}
}

func expectKind(t *testing.T, err error, want error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", want)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
