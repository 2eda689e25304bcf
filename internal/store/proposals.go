package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

const proposalColumns = `id, scope_type, from_owner_id, to_owner_id, status, notes, created_by, created_at,
	settled_by, settled_at, settle_notes`

// ProposalFilter narrows ListProposals. Zero fields are ignored.
type ProposalFilter struct {
	Status  model.ProposalStatus
	OwnerID int64
	Limit   int
}

// InsertProposal stores a proposal together with its lines.
func InsertProposal(ctx context.Context, q db.Querier, p *model.Proposal) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO proposals (id, scope_type, from_owner_id, to_owner_id, status, notes, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ScopeType, p.FromOwnerID, p.ToOwnerID, string(p.Status), nullString(p.Notes),
		p.CreatedBy, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting proposal: %w", err)
	}

	for _, l := range p.Lines {
		_, err := q.ExecContext(ctx,
			`INSERT INTO proposal_lines (proposal_id, position, item_kind, quantity, source_item_id, definition_id,
			                             name_snapshot, serial_snapshot, category_snapshot, unit_snapshot)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, l.Position, string(l.ItemKind), l.Quantity, nullString(l.SourceItemID), l.DefinitionID,
			l.NameSnapshot, nullString(l.SerialSnapshot), nullString(l.CategorySnapshot), l.UnitSnapshot,
		)
		if err != nil {
			return fmt.Errorf("inserting proposal line %d: %w", l.Position, err)
		}
	}
	return nil
}

// SettleProposal moves a pending proposal to a terminal status. It fails if
// the proposal is no longer pending.
func SettleProposal(ctx context.Context, q db.Querier, p *model.Proposal) error {
	res, err := q.ExecContext(ctx,
		`UPDATE proposals SET status = ?, settled_by = ?, settled_at = ?, settle_notes = ?
		 WHERE id = ? AND status = ?`,
		string(p.Status), nullInt64(p.SettledBy), p.SettledAt, nullString(p.SettleNotes),
		p.ID, string(model.ProposalPending),
	)
	if err != nil {
		return fmt.Errorf("settling proposal: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("settling proposal %s: not pending", p.ID)
	}
	return nil
}

// GetProposal returns a proposal with its lines.
func GetProposal(ctx context.Context, q db.Querier, id string) (*model.Proposal, error) {
	return getProposal(ctx, q, id, false)
}

// LockProposal returns a proposal with its lines, locking the proposal row.
func LockProposal(ctx context.Context, q db.Querier, id string) (*model.Proposal, error) {
	return getProposal(ctx, q, id, true)
}

func getProposal(ctx context.Context, q db.Querier, id string, lock bool) (*model.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = ?`
	if lock {
		query += db.ForUpdate(q)
	}
	p, err := scanProposal(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting proposal: %w", err)
	}

	p.Lines, err = proposalLines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProposals returns proposals matching the filter, newest first. Lines
// are included.
func ListProposals(ctx context.Context, q db.Querier, f ProposalFilter) ([]model.Proposal, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.OwnerID > 0 {
		where = append(where, "(from_owner_id = ? OR to_owner_id = ?)")
		args = append(args, f.OwnerID, f.OwnerID)
	}

	query := `SELECT ` + proposalColumns + ` FROM proposals`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	var proposals []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}

	// Lines are loaded after the cursor is closed; a :memory: database has a
	// single connection.
	for i := range proposals {
		proposals[i].Lines, err = proposalLines(ctx, q, proposals[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return proposals, nil
}

func proposalLines(ctx context.Context, q db.Querier, id string) ([]model.ProposalLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT position, item_kind, quantity, source_item_id, definition_id,
		        name_snapshot, serial_snapshot, category_snapshot, unit_snapshot
		 FROM proposal_lines WHERE proposal_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting proposal lines: %w", err)
	}
	defer rows.Close()

	var lines []model.ProposalLine
	for rows.Next() {
		var l model.ProposalLine
		var source, serial, category sql.NullString
		if err := rows.Scan(&l.Position, &l.ItemKind, &l.Quantity, &source, &l.DefinitionID,
			&l.NameSnapshot, &serial, &category, &l.UnitSnapshot); err != nil {
			return nil, fmt.Errorf("scanning proposal line: %w", err)
		}
		l.SourceItemID = source.String
		l.SerialSnapshot = serial.String
		l.CategorySnapshot = category.String
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanProposal(row rowScanner) (*model.Proposal, error) {
	p := &model.Proposal{}
	var notes, settleNotes sql.NullString
	var settledBy sql.NullInt64
	if err := row.Scan(&p.ID, &p.ScopeType, &p.FromOwnerID, &p.ToOwnerID, &p.Status, &notes,
		&p.CreatedBy, &p.CreatedAt, &settledBy, &p.SettledAt, &settleNotes); err != nil {
		return nil, err
	}
	p.Notes = notes.String
	p.SettleNotes = settleNotes.String
	if settledBy.Valid {
		p.SettledBy = &settledBy.Int64
	}
	return p, nil
}
