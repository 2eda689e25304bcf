package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

var testSeq atomic.Int64

func testID(prefix string) string {
	return fmt.Sprintf("%s-%04d", prefix, testSeq.Add(1))
}

func mustOwner(t *testing.T, q db.Querier, name, ownerType string) *model.Owner {
	t.Helper()
	o, err := CreateOwner(context.Background(), q, name, ownerType)
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	return o
}

func mustDefinition(t *testing.T, q db.Querier, kind model.ItemKind, name string) *model.Definition {
	t.Helper()
	d, err := CreateDefinition(context.Background(), q, kind, name, "", "", "")
	if err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	return d
}

func mustLot(t *testing.T, q db.Querier, def *model.Definition, owner *model.Owner, status model.ItemStatus, qty int) *model.Item {
	t.Helper()
	lot := NewLot(testID("lot"), def, owner.ID, owner.Type, status, qty, time.Now().UTC())
	if err := InsertItem(context.Background(), q, lot); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	return lot
}

func mustDevice(t *testing.T, q db.Querier, def *model.Definition, owner *model.Owner, serial string, status model.ItemStatus) *model.Item {
	t.Helper()
	now := time.Now().UTC()
	dev := &model.Item{
		ID:           testID("dev"),
		Kind:         model.KindDevice,
		DefinitionID: def.ID,
		Serial:       serial,
		Quantity:     1,
		Status:       status,
		Name:         def.Name,
		Unit:         def.Unit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	SetOwner(dev, owner.ID, owner.Type)
	if err := InsertItem(context.Background(), q, dev); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	return dev
}
