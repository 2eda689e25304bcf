package stock

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// Receive brings new stock into a location. Each device line creates an
// available device; each material line increases the location's available
// lot of that definition, creating one if needed. Serials still in
// circulation fail with ErrDuplicateSerial. A serial whose last record was
// returned to the operator starts a fresh item.
func (e *Engine) Receive(ctx context.Context, actor Actor, locationID int64, lines []ReceiveLine) ([]model.Item, error) {
	lines, err := normalizeReceive(lines)
	if err != nil {
		return nil, err
	}

	defs := make(map[int64]*model.Definition)
	for i, l := range lines {
		if _, ok := defs[l.DefinitionID]; ok {
			continue
		}
		def, err := e.definition(ctx, l.DefinitionID, l.Kind)
		if err != nil {
			return nil, lineError(i, err)
		}
		defs[l.DefinitionID] = def
	}

	p, err := e.run(ctx, "receive", actor, func(ctx context.Context, p *plan) error {
		loc, err := p.owner(ctx, locationID, model.OwnerTypeLocation)
		if err != nil {
			return err
		}

		for i, l := range lines {
			def := defs[l.DefinitionID]
			if l.Kind == model.KindDevice {
				err = p.receiveDevice(ctx, loc, def, l.Serial)
			} else {
				err = p.receiveMaterial(ctx, loc, def, l.Quantity)
			}
			if err != nil {
				return lineError(i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.touched(), nil
}

func (p *plan) receiveDevice(ctx context.Context, loc *model.Owner, def *model.Definition, serial string) error {
	live, err := store.FindLiveDevice(ctx, p.tx, serial)
	if err != nil {
		return err
	}
	if live != nil {
		return errorf(KindDuplicateSerial, "serial %s is already in circulation as %s", serial, live.ID)
	}

	var notes string
	retired, err := store.LatestRetiredDevice(ctx, p.tx, serial)
	if err != nil {
		return err
	}
	if retired != nil {
		notes = "re-entered circulation, previously " + retired.ID
	}

	dev := &model.Item{
		ID:           p.e.newID(p.now),
		Kind:         model.KindDevice,
		DefinitionID: def.ID,
		Serial:       serial,
		Quantity:     1,
		Status:       model.StatusAvailable,
		Name:         def.Name,
		Category:     def.Category,
		Unit:         def.Unit,
	}
	store.SetOwner(dev, loc.ID, loc.Type)
	p.create(dev)
	p.record(model.LedgerEntry{
		ItemID:    dev.ID,
		Action:    model.ActionReceived,
		ToOwnerID: &loc.ID,
		Notes:     notes,
	})
	return nil
}

func (p *plan) receiveMaterial(ctx context.Context, loc *model.Owner, def *model.Definition, qty int) error {
	lot, err := p.destLot(ctx, definitionSnapshot(def), loc, model.StatusAvailable)
	if err != nil {
		return err
	}
	lot.Quantity += qty
	p.touch(lot)
	p.record(model.LedgerEntry{
		ItemID:        lot.ID,
		Action:        model.ActionReceived,
		ToOwnerID:     &loc.ID,
		QuantityDelta: qty,
	})
	return nil
}

// normalizeReceive validates receive lines and merges material lines of the
// same definition, so every lot gets a single entry.
func normalizeReceive(in []ReceiveLine) ([]ReceiveLine, error) {
	if len(in) == 0 {
		return nil, errorf(KindInvalidInput, "at least one line is required")
	}

	var out []ReceiveLine
	serials := make(map[string]bool)
	materials := make(map[int64]int)
	for i, l := range in {
		l.Serial = strings.TrimSpace(l.Serial)
		if l.DefinitionID <= 0 {
			return nil, errorf(KindInvalidInput, "line %d: definition id is required", i+1)
		}
		switch l.Kind {
		case model.KindDevice:
			if l.Serial == "" {
				return nil, errorf(KindInvalidInput, "line %d: device needs a serial", i+1)
			}
			if l.Quantity != 0 && l.Quantity != 1 {
				return nil, errorf(KindInvalidInput, "line %d: device quantity must be 1", i+1)
			}
			if serials[l.Serial] {
				return nil, errorf(KindDuplicateSerial, "line %d: serial %s listed twice", i+1, l.Serial)
			}
			serials[l.Serial] = true
			l.Quantity = 1
			out = append(out, l)
		case model.KindMaterial:
			if l.Serial != "" {
				return nil, errorf(KindInvalidInput, "line %d: materials have no serial", i+1)
			}
			if l.Quantity <= 0 {
				return nil, errorf(KindInvalidInput, "line %d: quantity must be positive", i+1)
			}
			if idx, ok := materials[l.DefinitionID]; ok {
				out[idx].Quantity += l.Quantity
				continue
			}
			materials[l.DefinitionID] = len(out)
			out = append(out, l)
		default:
			return nil, errorf(KindInvalidInput, "line %d: unknown kind %q", i+1, l.Kind)
		}
	}
	return out, nil
}

// definition looks a definition up in the catalog and checks its kind.
func (e *Engine) definition(ctx context.Context, id int64, kind model.ItemKind) (*model.Definition, error) {
	def, err := e.catalog.GetDefinition(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up definition %d: %w", id, err)
	}
	if def == nil {
		return nil, errorf(KindNotFound, "definition %d not found", id)
	}
	if def.Kind != kind {
		return nil, errorf(KindInvalidInput, "definition %d is a %s, not a %s", id, def.Kind, kind)
	}
	return def, nil
}

// stockedDefinitions checks that every material line names a material
// definition. Stocked items reference the local definitions table, so it is
// read directly and a catalog outage cannot block stock movements.
func (e *Engine) stockedDefinitions(ctx context.Context, lines []Line) error {
	for i, l := range lines {
		if l.Kind != model.KindMaterial {
			continue
		}
		def, err := store.GetDefinition(ctx, e.db, l.DefinitionID)
		if err != nil {
			return fmt.Errorf("looking up definition %d: %w", l.DefinitionID, err)
		}
		if def == nil {
			return lineError(i, errorf(KindNotFound, "definition %d not found", l.DefinitionID))
		}
		if def.Kind != model.KindMaterial {
			return lineError(i, errorf(KindInvalidInput, "definition %d is a %s, not a material", def.ID, def.Kind))
		}
	}
	return nil
}

// Issue hands stock from a location to a technician. Devices must be
// available at the location; materials are drawn from the location's
// available lots into the technician's assigned lot.
func (e *Engine) Issue(ctx context.Context, actor Actor, fromLocationID, toHolderID int64, lines []Line) ([]model.Item, error) {
	lines, err := validateLines(lines)
	if err != nil {
		return nil, err
	}
	if err := e.stockedDefinitions(ctx, lines); err != nil {
		return nil, err
	}

	p, err := e.run(ctx, "issue", actor, func(ctx context.Context, p *plan) error {
		from, err := p.owner(ctx, fromLocationID, model.OwnerTypeLocation)
		if err != nil {
			return err
		}
		to, err := p.owner(ctx, toHolderID, model.OwnerTypeTechnician)
		if err != nil {
			return err
		}

		for i, l := range lines {
			if l.Kind == model.KindDevice {
				err = p.moveDevice(ctx, l, model.ActionIssued, from, to,
					[]model.ItemStatus{model.StatusAvailable}, model.StatusAssigned)
			} else {
				var lots []*model.Item
				lots, err = p.lots(ctx, l.DefinitionID, from.ID, model.StatusAvailable)
				if err == nil {
					err = p.moveMaterial(ctx, model.ActionIssued, lots, l.Quantity, from, to, model.StatusAssigned)
				}
			}
			if err != nil {
				return lineError(i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.touched(), nil
}

// ReturnToWarehouse takes stock back from a technician into a location.
// Devices that are assigned or collected from a client become returned;
// material is drawn from the technician's lots into the location's
// available lot.
func (e *Engine) ReturnToWarehouse(ctx context.Context, actor Actor, holderID, toLocationID int64, lines []Line) ([]model.Item, error) {
	lines, err := validateLines(lines)
	if err != nil {
		return nil, err
	}
	if err := e.stockedDefinitions(ctx, lines); err != nil {
		return nil, err
	}

	p, err := e.run(ctx, "return", actor, func(ctx context.Context, p *plan) error {
		from, err := p.owner(ctx, holderID, model.OwnerTypeTechnician)
		if err != nil {
			return err
		}
		to, err := p.owner(ctx, toLocationID, model.OwnerTypeLocation)
		if err != nil {
			return err
		}

		for i, l := range lines {
			if l.Kind == model.KindDevice {
				err = p.moveDevice(ctx, l, model.ActionReturned, from, to,
					[]model.ItemStatus{model.StatusAssigned, model.StatusCollectedFromClient}, model.StatusReturned)
			} else {
				var lots []*model.Item
				lots, err = p.heldLots(ctx, l, from)
				if err == nil {
					err = p.moveMaterial(ctx, model.ActionReturned, lots, l.Quantity, from, to, model.StatusAvailable)
				}
			}
			if err != nil {
				return lineError(i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.touched(), nil
}

// MarkCollectedFromClient records that a technician recovered an assigned
// device from a customer site. The device stays with the technician.
func (e *Engine) MarkCollectedFromClient(ctx context.Context, actor Actor, holderID int64, itemID string) (*model.Item, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, errorf(KindInvalidInput, "item id is required")
	}

	var dev *model.Item
	_, err := e.run(ctx, "collect", actor, func(ctx context.Context, p *plan) error {
		holder, err := p.owner(ctx, holderID, model.OwnerTypeTechnician)
		if err != nil {
			return err
		}
		dev, err = p.device(ctx, Line{Kind: model.KindDevice, ItemID: itemID})
		if err != nil {
			return err
		}
		if err := checkDevice(dev, holder, model.StatusAssigned); err != nil {
			return err
		}

		dev.Status = model.StatusCollectedFromClient
		p.touch(dev)
		p.record(model.LedgerEntry{
			ItemID:      dev.ID,
			Action:      model.ActionCollectedFromClient,
			FromOwnerID: &holder.ID,
			ToOwnerID:   &holder.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// ReturnToOperator sends stock at a location back to the network operator.
// Devices that are available or returned are retired; material leaves the
// system.
func (e *Engine) ReturnToOperator(ctx context.Context, actor Actor, fromLocationID int64, lines []Line) ([]model.Item, error) {
	lines, err := validateLines(lines)
	if err != nil {
		return nil, err
	}
	if err := e.stockedDefinitions(ctx, lines); err != nil {
		return nil, err
	}

	p, err := e.run(ctx, "return_to_operator", actor, func(ctx context.Context, p *plan) error {
		loc, err := p.owner(ctx, fromLocationID, model.OwnerTypeLocation)
		if err != nil {
			return err
		}

		for i, l := range lines {
			if l.Kind == model.KindDevice {
				err = p.retireDevice(ctx, l, loc)
			} else {
				err = p.retireMaterial(ctx, l, loc)
			}
			if err != nil {
				return lineError(i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.touched(), nil
}

func (p *plan) retireDevice(ctx context.Context, l Line, loc *model.Owner) error {
	dev, err := p.device(ctx, l)
	if err != nil {
		return err
	}
	if err := checkDevice(dev, loc, model.StatusAvailable, model.StatusReturned); err != nil {
		return err
	}
	dev.Status = model.StatusReturnedToOperator
	p.touch(dev)
	p.record(model.LedgerEntry{
		ItemID:      dev.ID,
		Action:      model.ActionReturnedToOperator,
		FromOwnerID: &loc.ID,
	})
	return nil
}

func (p *plan) retireMaterial(ctx context.Context, l Line, loc *model.Owner) error {
	lots, err := p.lots(ctx, l.DefinitionID, loc.ID, model.StatusAvailable)
	if err != nil {
		return err
	}
	src, qty, err := p.allocate(lots, l.Quantity)
	if err != nil {
		return err
	}
	for i, lot := range src {
		lot.Quantity -= qty[i]
		p.touch(lot)
		p.record(model.LedgerEntry{
			ItemID:        lot.ID,
			Action:        model.ActionReturnedToOperator,
			FromOwnerID:   &loc.ID,
			QuantityDelta: -qty[i],
		})
	}
	return nil
}

// moveDevice moves one device between owners, checking that it is held by
// from in one of the allowed statuses.
func (p *plan) moveDevice(ctx context.Context, l Line, action model.Action, from, to *model.Owner,
	allowed []model.ItemStatus, next model.ItemStatus) error {
	dev, err := p.device(ctx, l)
	if err != nil {
		return err
	}
	if err := checkDevice(dev, from, allowed...); err != nil {
		return err
	}

	store.SetOwner(dev, to.ID, to.Type)
	dev.Status = next
	p.touch(dev)
	p.record(model.LedgerEntry{
		ItemID:      dev.ID,
		Action:      action,
		FromOwnerID: &from.ID,
		ToOwnerID:   &to.ID,
	})
	return nil
}

// heldLots returns a technician's lots for a material line, failing when
// the technician holds too little in total or too little unreserved.
func (p *plan) heldLots(ctx context.Context, l Line, holder *model.Owner) ([]*model.Item, error) {
	lots, err := p.lots(ctx, l.DefinitionID, holder.ID, model.StatusAssigned)
	if err != nil {
		return nil, err
	}
	held := heldTotal(lots)
	if held < l.Quantity {
		return nil, errorf(KindExceedsHeldQuantity, "requested %d of definition %d, %s holds %d",
			l.Quantity, l.DefinitionID, holder.Name, held)
	}
	if free := unreservedTotal(lots); free < l.Quantity {
		return nil, errorf(KindItemReserved, "requested %d of definition %d, %d are reserved by pending transfers",
			l.Quantity, l.DefinitionID, held-free)
	}
	return lots, nil
}

// checkDevice applies the common preconditions of a device transition:
// unreserved, in an allowed status and held by owner.
func checkDevice(dev *model.Item, owner *model.Owner, allowed ...model.ItemStatus) error {
	if dev.Reserved {
		return errorf(KindItemReserved, "device %s is reserved by transfer %s", dev.Serial, dev.ReservedBy)
	}
	if !slices.Contains(allowed, dev.Status) {
		return errorf(KindInvalidState, "device %s is %s", dev.Serial, dev.Status)
	}
	if !dev.HeldBy(owner.ID) {
		return errorf(KindInvalidState, "device %s is not held by %s", dev.Serial, owner.Name)
	}
	return nil
}
