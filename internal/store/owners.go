package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

// CreateOwner creates a new owner (location or technician).
func CreateOwner(ctx context.Context, q db.Querier, name, ownerType string) (*model.Owner, error) {
	if !model.ValidOwnerType(ownerType) {
		return nil, fmt.Errorf("invalid owner type %q", ownerType)
	}

	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO owners (name, type) VALUES (?, ?) RETURNING id`,
		name, ownerType,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating owner: %w", err)
	}

	return GetOwner(ctx, q, id)
}

// GetOwner returns an owner by ID.
func GetOwner(ctx context.Context, q db.Querier, id int64) (*model.Owner, error) {
	o := &model.Owner{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, type, created_at, deleted_at
		 FROM owners WHERE id = ?`, id,
	).Scan(&o.ID, &o.Name, &o.Type, &o.CreatedAt, &o.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting owner: %w", err)
	}
	return o, nil
}

// ListOwners returns all non-deleted owners, optionally filtered by type.
func ListOwners(ctx context.Context, q db.Querier, ownerType string) ([]model.Owner, error) {
	var rows *sql.Rows
	var err error

	if ownerType != "" {
		rows, err = q.QueryContext(ctx,
			`SELECT id, name, type, created_at, deleted_at
			 FROM owners WHERE deleted_at IS NULL AND type = ? ORDER BY name`, ownerType,
		)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT id, name, type, created_at, deleted_at
			 FROM owners WHERE deleted_at IS NULL ORDER BY name`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}
	defer rows.Close()

	var owners []model.Owner
	for rows.Next() {
		var o model.Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.Type, &o.CreatedAt, &o.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning owner: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// UpdateOwner updates an owner's name.
func UpdateOwner(ctx context.Context, q db.Querier, id int64, name string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE owners SET name = ? WHERE id = ? AND deleted_at IS NULL`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("updating owner: %w", err)
	}
	return nil
}

// DeleteOwner soft-deletes an owner. Fails if the owner still holds any
// non-empty item or lot.
func DeleteOwner(ctx context.Context, q db.Querier, id int64) error {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items
		 WHERE (location_id = ? OR holder_id = ?) AND quantity > 0 AND status <> ?`,
		id, id, string(model.StatusReturnedToOperator),
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking owner inventory: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete owner: still holds %d items", count)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE owners SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting owner: %w", err)
	}
	return nil
}
