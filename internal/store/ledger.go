package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

const ledgerColumns = `id, item_id, counterpart_item_id, action, actor_id, from_owner_id, to_owner_id,
	proposal_id, quantity_delta, notes, created_at`

// LedgerFilter narrows ListLedger. Zero fields are ignored.
type LedgerFilter struct {
	Action     model.Action
	ActorID    int64
	OwnerID    int64
	ProposalID string
	Limit      int
}

// AppendLedger records one entry. The ledger is append-only; there is no
// update or delete counterpart.
func AppendLedger(ctx context.Context, q db.Querier, e *model.LedgerEntry) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO ledger (item_id, counterpart_item_id, action, actor_id, from_owner_id, to_owner_id,
		                     proposal_id, quantity_delta, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.ItemID, nullString(e.CounterpartItemID), string(e.Action), e.ActorID,
		nullInt64(e.FromOwnerID), nullInt64(e.ToOwnerID), nullString(e.ProposalID),
		e.QuantityDelta, nullString(e.Notes), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}
	return nil
}

// ItemHistory returns every entry that changed the item, oldest first.
// Entries where the item received quantity from another lot are mirrored:
// ItemID and CounterpartItemID are swapped and the delta negated, so the
// deltas in a material lot's history sum to its current quantity.
func ItemHistory(ctx context.Context, q db.Querier, itemID string) ([]model.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger
		 WHERE item_id = ? OR counterpart_item_id = ?
		 ORDER BY id`, itemID, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item history: %w", err)
	}
	defer rows.Close()

	entries, err := scanLedger(rows)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		if e.CounterpartItemID == itemID && e.ItemID != itemID {
			e.ItemID, e.CounterpartItemID = itemID, e.ItemID
			e.QuantityDelta = -e.QuantityDelta
		}
	}
	return entries, nil
}

// ListLedger returns ledger entries matching the filter, newest first.
func ListLedger(ctx context.Context, q db.Querier, f LedgerFilter) ([]model.LedgerEntry, error) {
	var where []string
	var args []any

	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(f.Action))
	}
	if f.ActorID > 0 {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.OwnerID > 0 {
		where = append(where, "(from_owner_id = ? OR to_owner_id = ?)")
		args = append(args, f.OwnerID, f.OwnerID)
	}
	if f.ProposalID != "" {
		where = append(where, "proposal_id = ?")
		args = append(args, f.ProposalID)
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	defer rows.Close()

	return scanLedger(rows)
}

func scanLedger(rows *sql.Rows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var counterpart, proposalID, notes sql.NullString
		var fromOwner, toOwner sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ItemID, &counterpart, &e.Action, &e.ActorID,
			&fromOwner, &toOwner, &proposalID, &e.QuantityDelta, &notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.CounterpartItemID = counterpart.String
		e.ProposalID = proposalID.String
		e.Notes = notes.String
		if fromOwner.Valid {
			e.FromOwnerID = &fromOwner.Int64
		}
		if toOwner.Valid {
			e.ToOwnerID = &toOwner.Int64
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
