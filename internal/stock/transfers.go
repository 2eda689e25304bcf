package stock

import (
	"context"
	"strings"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// Statuses a source row may be in to be transferred, per scope type.
var (
	transferableDevices = map[string][]model.ItemStatus{
		model.OwnerTypeLocation:   {model.StatusAvailable, model.StatusReturned},
		model.OwnerTypeTechnician: {model.StatusAssigned, model.StatusCollectedFromClient},
	}
	lotStatus = map[string]model.ItemStatus{
		model.OwnerTypeLocation:   model.StatusAvailable,
		model.OwnerTypeTechnician: model.StatusAssigned,
	}
)

// ProposeTransfer reserves stock held by one owner for a move to another
// owner of the same type. Nothing changes hands until the proposal is
// confirmed; until then the reserved rows are unavailable to every other
// operation.
func (e *Engine) ProposeTransfer(ctx context.Context, actor Actor, fromOwnerID, toOwnerID int64, lines []Line, notes string) (*model.Proposal, error) {
	lines, err := validateLines(lines)
	if err != nil {
		return nil, err
	}
	if fromOwnerID == toOwnerID {
		return nil, errorf(KindInvalidInput, "cannot transfer to the same owner")
	}

	defs := make(map[int64]*model.Definition)
	for i, l := range lines {
		if l.Kind != model.KindMaterial {
			continue
		}
		def, err := e.definition(ctx, l.DefinitionID, model.KindMaterial)
		if err != nil {
			return nil, lineError(i, err)
		}
		defs[l.DefinitionID] = def
	}

	var prop *model.Proposal
	_, err = e.run(ctx, "propose", actor, func(ctx context.Context, p *plan) error {
		from, err := p.owner(ctx, fromOwnerID, "")
		if err != nil {
			return err
		}
		to, err := p.owner(ctx, toOwnerID, "")
		if err != nil {
			return err
		}
		if from.Type != to.Type {
			return errorf(KindInvalidInput, "cannot transfer from a %s to a %s", from.Type, to.Type)
		}

		prop = &model.Proposal{
			ID:          e.newID(p.now),
			ScopeType:   from.Type,
			FromOwnerID: from.ID,
			ToOwnerID:   to.ID,
			Status:      model.ProposalPending,
			Notes:       strings.TrimSpace(notes),
			CreatedBy:   actor.ID,
			CreatedAt:   p.now,
		}
		p.proposal = prop

		for i, l := range lines {
			var line model.ProposalLine
			if l.Kind == model.KindDevice {
				line, err = p.reserveDevice(ctx, prop, l, from, to)
			} else {
				line, err = p.reserveMaterial(ctx, prop, l, defs[l.DefinitionID], from, to)
			}
			if err != nil {
				return lineError(i, err)
			}
			line.Position = i + 1
			prop.Lines = append(prop.Lines, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prop, nil
}

func (p *plan) reserveDevice(ctx context.Context, prop *model.Proposal, l Line, from, to *model.Owner) (model.ProposalLine, error) {
	dev, err := p.device(ctx, l)
	if err != nil {
		return model.ProposalLine{}, err
	}
	if err := checkDevice(dev, from, transferableDevices[from.Type]...); err != nil {
		return model.ProposalLine{}, err
	}

	dev.Reserved, dev.ReservedBy = true, prop.ID
	p.touch(dev)
	p.record(model.LedgerEntry{
		ItemID:      dev.ID,
		Action:      model.ActionTransferProposed,
		FromOwnerID: &from.ID,
		ToOwnerID:   &to.ID,
		ProposalID:  prop.ID,
	})

	return model.ProposalLine{
		ItemKind:         model.KindDevice,
		Quantity:         1,
		SourceItemID:     dev.ID,
		DefinitionID:     dev.DefinitionID,
		NameSnapshot:     dev.Name,
		SerialSnapshot:   dev.Serial,
		CategorySnapshot: dev.Category,
		UnitSnapshot:     dev.Unit,
	}, nil
}

// reserveMaterial reserves whole lots for a material line. A lot drawn only
// in part is split: the drawn quantity moves to a new lot that carries the
// reservation.
func (p *plan) reserveMaterial(ctx context.Context, prop *model.Proposal, l Line, def *model.Definition, from, to *model.Owner) (model.ProposalLine, error) {
	var lots []*model.Item
	var err error
	if from.Type == model.OwnerTypeTechnician {
		lots, err = p.heldLots(ctx, l, from)
	} else {
		lots, err = p.lots(ctx, l.DefinitionID, from.ID, lotStatus[from.Type])
	}
	if err != nil {
		return model.ProposalLine{}, err
	}

	src, qty, err := p.allocate(lots, l.Quantity)
	if err != nil {
		return model.ProposalLine{}, err
	}
	for i, lot := range src {
		entry := model.LedgerEntry{
			ItemID:      lot.ID,
			Action:      model.ActionTransferProposed,
			FromOwnerID: &from.ID,
			ToOwnerID:   &to.ID,
			ProposalID:  prop.ID,
		}
		if qty[i] == lot.Quantity {
			lot.Reserved, lot.ReservedBy = true, prop.ID
		} else {
			part := p.create(p.newLot(itemSnapshot(lot), from, lot.Status, qty[i]))
			part.Reserved, part.ReservedBy = true, prop.ID
			lot.Quantity -= qty[i]
			entry.CounterpartItemID = part.ID
			entry.QuantityDelta = -qty[i]
		}
		p.touch(lot)
		p.record(entry)
	}

	return model.ProposalLine{
		ItemKind:         model.KindMaterial,
		Quantity:         l.Quantity,
		DefinitionID:     def.ID,
		NameSnapshot:     def.Name,
		CategorySnapshot: def.Category,
		UnitSnapshot:     def.Unit,
	}, nil
}

// ConfirmTransfer moves every reserved row of a pending proposal to its
// destination and releases the reservations. Device statuses are kept;
// material moves into the destination's lot.
func (e *Engine) ConfirmTransfer(ctx context.Context, actor Actor, proposalID string) (*model.Proposal, error) {
	var prop *model.Proposal
	_, err := e.run(ctx, "confirm", actor, func(ctx context.Context, p *plan) error {
		var err error
		prop, err = p.pendingProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		from, err := p.owner(ctx, prop.FromOwnerID, prop.ScopeType)
		if err != nil {
			return err
		}
		to, err := p.owner(ctx, prop.ToOwnerID, prop.ScopeType)
		if err != nil {
			return err
		}

		for i, line := range prop.Lines {
			if line.ItemKind == model.KindDevice {
				err = p.confirmDevice(ctx, prop, line, from, to)
			} else {
				err = p.confirmMaterial(ctx, prop, line, from, to)
			}
			if err != nil {
				return lineError(i, err)
			}
		}

		p.settleAs(prop, model.ProposalConfirmed, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prop, nil
}

func (p *plan) confirmDevice(ctx context.Context, prop *model.Proposal, line model.ProposalLine, from, to *model.Owner) error {
	dev, err := p.item(ctx, line.SourceItemID)
	if err != nil {
		return err
	}
	if dev.ReservedBy != prop.ID || !dev.HeldBy(from.ID) {
		return errorf(KindInvalidState, "device %s is no longer reserved by transfer %s", dev.Serial, prop.ID)
	}

	store.SetOwner(dev, to.ID, to.Type)
	dev.Reserved, dev.ReservedBy = false, ""
	p.touch(dev)
	p.record(model.LedgerEntry{
		ItemID:      dev.ID,
		Action:      model.ActionTransferConfirmed,
		FromOwnerID: &from.ID,
		ToOwnerID:   &to.ID,
		ProposalID:  prop.ID,
	})
	return nil
}

func (p *plan) confirmMaterial(ctx context.Context, prop *model.Proposal, line model.ProposalLine, from, to *model.Owner) error {
	lots, err := p.reservedLots(ctx, prop.ID, line.DefinitionID)
	if err != nil {
		return err
	}
	if held := heldTotal(lots); held != line.Quantity || len(lots) == 0 {
		return errorf(KindInvalidState, "transfer %s reserves %d of definition %d, expected %d",
			prop.ID, held, line.DefinitionID, line.Quantity)
	}

	dest, err := p.destLot(ctx, itemSnapshot(lots[0]), to, lotStatus[to.Type])
	if err != nil {
		return err
	}
	for _, lot := range lots {
		n := lot.Quantity
		dest.Quantity += n
		lot.Quantity = 0
		lot.Reserved, lot.ReservedBy = false, ""
		p.touch(lot)
		p.record(model.LedgerEntry{
			ItemID:            lot.ID,
			CounterpartItemID: dest.ID,
			Action:            model.ActionTransferConfirmed,
			FromOwnerID:       &from.ID,
			ToOwnerID:         &to.ID,
			ProposalID:        prop.ID,
			QuantityDelta:     -n,
		})
	}
	p.touch(dest)
	return nil
}

// RejectTransfer is used by the receiving owner to decline a pending
// proposal. Reservations are released; nothing moves.
func (e *Engine) RejectTransfer(ctx context.Context, actor Actor, proposalID, notes string) (*model.Proposal, error) {
	return e.release(ctx, "reject", actor, proposalID, notes, model.ProposalRejected, model.ActionTransferRejected)
}

// CancelTransfer is used by the originating owner to withdraw a pending
// proposal. Reservations are released; nothing moves.
func (e *Engine) CancelTransfer(ctx context.Context, actor Actor, proposalID, notes string) (*model.Proposal, error) {
	return e.release(ctx, "cancel", actor, proposalID, notes, model.ProposalCancelled, model.ActionTransferCancelled)
}

func (e *Engine) release(ctx context.Context, op string, actor Actor, proposalID, notes string,
	status model.ProposalStatus, action model.Action) (*model.Proposal, error) {
	var prop *model.Proposal
	_, err := e.run(ctx, op, actor, func(ctx context.Context, p *plan) error {
		var err error
		prop, err = p.pendingProposal(ctx, proposalID)
		if err != nil {
			return err
		}

		var rows []*model.Item
		for i, line := range prop.Lines {
			if line.ItemKind == model.KindDevice {
				dev, err := p.item(ctx, line.SourceItemID)
				if err != nil {
					return lineError(i, err)
				}
				if dev.ReservedBy != prop.ID {
					return lineError(i, errorf(KindInvalidState,
						"device %s is no longer reserved by transfer %s", dev.Serial, prop.ID))
				}
				rows = append(rows, dev)
				continue
			}
			lots, err := p.reservedLots(ctx, prop.ID, line.DefinitionID)
			if err != nil {
				return lineError(i, err)
			}
			rows = append(rows, lots...)
		}

		for _, it := range rows {
			it.Reserved, it.ReservedBy = false, ""
			p.touch(it)
			p.record(model.LedgerEntry{
				ItemID:      it.ID,
				Action:      action,
				FromOwnerID: &prop.FromOwnerID,
				ToOwnerID:   &prop.ToOwnerID,
				ProposalID:  prop.ID,
				Notes:       strings.TrimSpace(notes),
			})
		}

		p.settleAs(prop, status, notes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prop, nil
}

// pendingProposal loads and locks a proposal that has not been settled.
func (p *plan) pendingProposal(ctx context.Context, id string) (*model.Proposal, error) {
	id = strings.TrimSpace(id)
	prop, err := store.LockProposal(ctx, p.tx, id)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, errorf(KindNotFound, "transfer %s not found", id)
	}
	if prop.Status.Terminal() {
		return nil, errorf(KindInvalidState, "transfer %s is already %s", id, prop.Status)
	}
	return prop, nil
}

func (p *plan) settleAs(prop *model.Proposal, status model.ProposalStatus, notes string) {
	settledBy, settledAt := p.actor.ID, p.now
	prop.Status = status
	prop.SettledBy = &settledBy
	prop.SettledAt = &settledAt
	prop.SettleNotes = strings.TrimSpace(notes)
	p.settle = prop
}
