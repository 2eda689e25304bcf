package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

func TestProposeBlocksIssueUntilConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receiveCable(t, f.warehouse, 10)

	prop, err := f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.depot.ID, []Line{material(f.cable, 5)}, "restock depot")
	if err != nil {
		t.Fatalf("ProposeTransfer: %v", err)
	}
	if prop.Status != model.ProposalPending || prop.ScopeType != model.OwnerTypeLocation {
		t.Errorf("expected pending location transfer, got %+v", prop)
	}

	_, err = f.e.Issue(ctx, f.actor, f.warehouse.ID, f.alice.ID, []Line{material(f.cable, 8)})
	expectKind(t, err, ErrInsufficientStock)

	confirmed, err := f.e.ConfirmTransfer(ctx, f.actor, prop.ID)
	if err != nil {
		t.Fatalf("ConfirmTransfer: %v", err)
	}
	if confirmed.Status != model.ProposalConfirmed || confirmed.SettledBy == nil {
		t.Errorf("expected confirmed with settler, got %+v", confirmed)
	}

	if got := f.held(t, f.warehouse, f.cable, model.StatusAvailable); got != 5 {
		t.Errorf("expected warehouse at 5, got %d", got)
	}
	if got := f.held(t, f.depot, f.cable, model.StatusAvailable); got != 5 {
		t.Errorf("expected depot at 5, got %d", got)
	}

	reserved, _ := f.e.ListItems(ctx, store.ItemFilter{ReservedBy: prop.ID})
	if len(reserved) != 0 {
		t.Errorf("expected no rows left reserved, got %d", len(reserved))
	}
}

func TestDeviceTransferBetweenLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dev := f.receiveRouter(t, f.warehouse, "SN-1")

	prop, err := f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.depot.ID, []Line{device(dev)}, "")
	if err != nil {
		t.Fatalf("ProposeTransfer: %v", err)
	}
	got := f.item(t, dev.ID)
	if !got.Reserved || got.ReservedBy != prop.ID || got.OwnerID() != f.warehouse.ID {
		t.Fatalf("expected reserved in place, got %+v", got)
	}
	if line := prop.Lines[0]; line.SourceItemID != dev.ID || line.SerialSnapshot != "SN-1" || line.NameSnapshot != "Router" {
		t.Errorf("unexpected line %+v", line)
	}

	_, err = f.e.Issue(ctx, f.actor, f.warehouse.ID, f.alice.ID, []Line{device(dev)})
	expectKind(t, err, ErrItemReserved)
	_, err = f.e.ReturnToOperator(ctx, f.actor, f.warehouse.ID, []Line{device(dev)})
	expectKind(t, err, ErrItemReserved)
	_, err = f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.depot.ID, []Line{device(dev)}, "")
	expectKind(t, err, ErrItemReserved)

	if _, err := f.e.ConfirmTransfer(ctx, f.actor, prop.ID); err != nil {
		t.Fatalf("ConfirmTransfer: %v", err)
	}
	got = f.item(t, dev.ID)
	if got.Reserved || got.OwnerID() != f.depot.ID || got.Status != model.StatusAvailable {
		t.Errorf("expected available at depot, got %+v", got)
	}

	history, _ := f.e.ItemHistory(ctx, dev.ID)
	want := []model.Action{model.ActionReceived, model.ActionTransferProposed, model.ActionTransferConfirmed}
	if len(history) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(history))
	}
	for i, a := range want {
		if history[i].Action != a {
			t.Errorf("entry %d: expected %s, got %s", i, a, history[i].Action)
		}
	}
}

func TestTransferBetweenTechnicians(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dev := f.receiveRouter(t, f.warehouse, "SN-1")
	f.receiveCable(t, f.warehouse, 10)
	if _, err := f.e.Issue(ctx, f.actor, f.warehouse.ID, f.alice.ID, []Line{device(dev), material(f.cable, 4)}); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := f.e.MarkCollectedFromClient(ctx, f.actor, f.alice.ID, dev.ID); err != nil {
		t.Fatalf("MarkCollectedFromClient: %v", err)
	}

	prop, err := f.e.ProposeTransfer(ctx, f.actor, f.alice.ID, f.bob.ID, []Line{device(dev), material(f.cable, 3)}, "")
	if err != nil {
		t.Fatalf("ProposeTransfer: %v", err)
	}

	// Alice still holds 4, but only 1 is free.
	_, err = f.e.ReturnToWarehouse(ctx, f.actor, f.alice.ID, f.warehouse.ID, []Line{material(f.cable, 2)})
	expectKind(t, err, ErrItemReserved)
	_, err = f.e.ReturnToWarehouse(ctx, f.actor, f.alice.ID, f.warehouse.ID, []Line{material(f.cable, 5)})
	expectKind(t, err, ErrExceedsHeldQuantity)

	if _, err := f.e.ConfirmTransfer(ctx, f.actor, prop.ID); err != nil {
		t.Fatalf("ConfirmTransfer: %v", err)
	}

	got := f.item(t, dev.ID)
	if got.OwnerID() != f.bob.ID || got.Status != model.StatusCollectedFromClient || got.HolderID == nil {
		t.Errorf("expected collected device with Bob, got %+v", got)
	}
	if n := f.held(t, f.alice, f.cable, model.StatusAssigned); n != 1 {
		t.Errorf("expected Alice to keep 1, got %d", n)
	}
	if n := f.held(t, f.bob, f.cable, model.StatusAssigned); n != 3 {
		t.Errorf("expected Bob to hold 3, got %d", n)
	}
}

func TestProposeFromTechnicianExceedsHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receiveCable(t, f.warehouse, 10)
	f.e.Issue(ctx, f.actor, f.warehouse.ID, f.alice.ID, []Line{material(f.cable, 2)})

	_, err := f.e.ProposeTransfer(ctx, f.actor, f.alice.ID, f.bob.ID, []Line{material(f.cable, 3)}, "")
	expectKind(t, err, ErrExceedsHeldQuantity)
}

func TestRejectReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receiveCable(t, f.warehouse, 10)
	prop, err := f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.depot.ID, []Line{material(f.cable, 4)}, "")
	if err != nil {
		t.Fatalf("ProposeTransfer: %v", err)
	}

	rejected, err := f.e.RejectTransfer(ctx, Actor{ID: 2}, prop.ID, "  not needed ")
	if err != nil {
		t.Fatalf("RejectTransfer: %v", err)
	}
	if rejected.Status != model.ProposalRejected || rejected.SettleNotes != "not needed" {
		t.Errorf("expected rejected with notes, got %+v", rejected)
	}

	stored, _ := f.e.GetProposal(ctx, prop.ID)
	if stored.Status != model.ProposalRejected || stored.SettledBy == nil || *stored.SettledBy != 2 {
		t.Errorf("expected stored rejection by actor 2, got %+v", stored)
	}

	if got := f.held(t, f.warehouse, f.cable, model.StatusAvailable); got != 10 {
		t.Errorf("expected all 10 back at warehouse, got %d", got)
	}
	if got := f.held(t, f.depot, f.cable, model.StatusAvailable); got != 0 {
		t.Errorf("expected nothing at depot, got %d", got)
	}
	if _, err := f.e.Issue(ctx, f.actor, f.warehouse.ID, f.alice.ID, []Line{material(f.cable, 10)}); err != nil {
		t.Errorf("expected released stock to be issuable: %v", err)
	}

	entries := f.ledger(t, store.LedgerFilter{ProposalID: prop.ID, Action: model.ActionTransferRejected})
	if len(entries) != 1 {
		t.Errorf("expected 1 rejected entry, got %d", len(entries))
	}
}

func TestSettledProposalIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dev := f.receiveRouter(t, f.warehouse, "SN-1")
	prop, err := f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.depot.ID, []Line{device(dev)}, "")
	if err != nil {
		t.Fatalf("ProposeTransfer: %v", err)
	}
	if _, err := f.e.CancelTransfer(ctx, f.actor, prop.ID, ""); err != nil {
		t.Fatalf("CancelTransfer: %v", err)
	}

	_, err = f.e.ConfirmTransfer(ctx, f.actor, prop.ID)
	expectKind(t, err, ErrInvalidState)
	_, err = f.e.CancelTransfer(ctx, f.actor, prop.ID, "")
	expectKind(t, err, ErrInvalidState)
	_, err = f.e.RejectTransfer(ctx, f.actor, prop.ID, "")
	expectKind(t, err, ErrInvalidState)

	got := f.item(t, dev.ID)
	if got.Reserved || got.OwnerID() != f.warehouse.ID {
		t.Errorf("expected device released at warehouse, got %+v", got)
	}
}

func TestSettleUnknownProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.e.ConfirmTransfer(ctx, f.actor, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	expectKind(t, err, ErrNotFound)
	_, err = f.e.RejectTransfer(ctx, f.actor, "nope", "")
	expectKind(t, err, ErrNotFound)
	_, err = f.e.GetProposal(ctx, "nope")
	expectKind(t, err, ErrNotFound)
}

func TestProposeScopeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receiveCable(t, f.warehouse, 5)

	_, err := f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.alice.ID, []Line{material(f.cable, 1)}, "")
	expectKind(t, err, ErrInvalidInput)

	_, err = f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.warehouse.ID, []Line{material(f.cable, 1)}, "")
	expectKind(t, err, ErrInvalidInput)

	_, err = f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, 999, []Line{material(f.cable, 1)}, "")
	expectKind(t, err, ErrNotFound)

	_, err = f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.depot.ID,
		[]Line{material(f.cable, 1), material(f.cable, 2)}, "")
	expectKind(t, err, ErrInvalidInput)
}

func TestProposalSnapshotsSurviveCatalogEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receiveCable(t, f.warehouse, 5)
	prop, err := f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.depot.ID, []Line{material(f.cable, 2)}, "")
	if err != nil {
		t.Fatalf("ProposeTransfer: %v", err)
	}

	if err := store.UpdateDefinition(ctx, f.db, f.cable.ID, "Coax cable", "cabling", "ft", ""); err != nil {
		t.Fatalf("UpdateDefinition: %v", err)
	}

	got, _ := f.e.GetProposal(ctx, prop.ID)
	line := got.Lines[0]
	if line.NameSnapshot != "Cable" || line.UnitSnapshot != "m" || line.CategorySnapshot != "cabling" {
		t.Errorf("expected original snapshot, got %+v", line)
	}
}

func TestConfirmDoesNotNeedCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receiveCable(t, f.warehouse, 5)
	prop, err := f.e.ProposeTransfer(ctx, f.actor, f.warehouse.ID, f.depot.ID, []Line{material(f.cable, 2)}, "")
	if err != nil {
		t.Fatalf("ProposeTransfer: %v", err)
	}

	offline := New(f.db, unavailableCatalog{}, WithLogger(f.e.log))
	if _, err := offline.ConfirmTransfer(ctx, f.actor, prop.ID); err != nil {
		t.Fatalf("ConfirmTransfer with catalog down: %v", err)
	}
}

type unavailableCatalog struct{}

func (unavailableCatalog) GetDefinition(context.Context, int64) (*model.Definition, error) {
	return nil, errors.New("catalog unavailable")
}
