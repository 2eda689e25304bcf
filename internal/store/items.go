package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

const itemColumns = `id, kind, definition_id, serial, quantity, location_id, holder_id, status,
	reserved, reserved_by, name, category, unit, created_at, updated_at`

// ItemFilter narrows ListItems. Zero fields are ignored.
type ItemFilter struct {
	Kind         model.ItemKind
	DefinitionID int64
	OwnerID      int64
	Serial       string
	ReservedBy   string
	Statuses     []model.ItemStatus
	NonEmpty     bool
	Limit        int

	// ForUpdate locks the selected rows until the transaction ends.
	ForUpdate bool
}

// InsertItem adds a new row to the item registry.
func InsertItem(ctx context.Context, q db.Querier, item *model.Item) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO items (id, kind, definition_id, serial, quantity, location_id, holder_id, status,
		                    reserved, reserved_by, name, category, unit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Kind), item.DefinitionID, nullString(item.Serial), item.Quantity,
		nullInt64(item.LocationID), nullInt64(item.HolderID), string(item.Status),
		item.Reserved, nullString(item.ReservedBy), item.Name, nullString(item.Category), item.Unit,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// UpdateItem writes the mutable fields of an item back to the registry.
func UpdateItem(ctx context.Context, q db.Querier, item *model.Item) error {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET quantity = ?, location_id = ?, holder_id = ?, status = ?,
		                  reserved = ?, reserved_by = ?, updated_at = ?
		 WHERE id = ?`,
		item.Quantity, nullInt64(item.LocationID), nullInt64(item.HolderID), string(item.Status),
		item.Reserved, nullString(item.ReservedBy), item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("updating item %s: %d rows affected", item.ID, n)
	}
	return nil
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, q db.Querier, id string) (*model.Item, error) {
	return getItem(ctx, q, id, false)
}

// LockItem returns an item by ID, locking its row for the rest of the transaction.
func LockItem(ctx context.Context, q db.Querier, id string) (*model.Item, error) {
	return getItem(ctx, q, id, true)
}

func getItem(ctx context.Context, q db.Querier, id string, lock bool) (*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`
	if lock {
		query += db.ForUpdate(q)
	}
	item, err := scanItem(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// FindLiveDevice returns the device with the given serial that has not been
// returned to the operator, or nil.
func FindLiveDevice(ctx context.Context, q db.Querier, serial string) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE kind = ? AND serial = ? AND status <> ?`+db.ForUpdate(q),
		string(model.KindDevice), serial, string(model.StatusReturnedToOperator),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding device by serial: %w", err)
	}
	return item, nil
}

// LatestRetiredDevice returns the most recent device with the given serial
// that was returned to the operator, or nil.
func LatestRetiredDevice(ctx context.Context, q db.Querier, serial string) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE kind = ? AND serial = ? AND status = ?
		 ORDER BY updated_at DESC, id DESC LIMIT 1`,
		string(model.KindDevice), serial, string(model.StatusReturnedToOperator),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding retired device: %w", err)
	}
	return item, nil
}

// ListItems returns registry rows matching the filter, oldest first.
func ListItems(ctx context.Context, q db.Querier, f ItemFilter) ([]model.Item, error) {
	var where []string
	var args []any

	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.DefinitionID > 0 {
		where = append(where, "definition_id = ?")
		args = append(args, f.DefinitionID)
	}
	if f.OwnerID > 0 {
		where = append(where, "(location_id = ? OR holder_id = ?)")
		args = append(args, f.OwnerID, f.OwnerID)
	}
	if f.Serial != "" {
		where = append(where, "serial = ?")
		args = append(args, f.Serial)
	}
	if f.ReservedBy != "" {
		where = append(where, "reserved_by = ?")
		args = append(args, f.ReservedBy)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.NonEmpty {
		where = append(where, "quantity > 0")
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.ForUpdate {
		query += db.ForUpdate(q)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// NewLot builds an unreserved material lot held by owner. The owner column
// is chosen by ownerType.
func NewLot(id string, def *model.Definition, ownerID int64, ownerType string, status model.ItemStatus, quantity int, now time.Time) *model.Item {
	lot := &model.Item{
		ID:           id,
		Kind:         model.KindMaterial,
		DefinitionID: def.ID,
		Quantity:     quantity,
		Status:       status,
		Name:         def.Name,
		Category:     def.Category,
		Unit:         def.Unit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	SetOwner(lot, ownerID, ownerType)
	return lot
}

// SetOwner moves an item to the given owner, clearing the other owner column.
func SetOwner(item *model.Item, ownerID int64, ownerType string) {
	id := ownerID
	if ownerType == model.OwnerTypeLocation {
		item.LocationID, item.HolderID = &id, nil
	} else {
		item.LocationID, item.HolderID = nil, &id
	}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var serial, reservedBy, category sql.NullString
	var locationID, holderID sql.NullInt64
	if err := row.Scan(&item.ID, &item.Kind, &item.DefinitionID, &serial, &item.Quantity,
		&locationID, &holderID, &item.Status, &item.Reserved, &reservedBy,
		&item.Name, &category, &item.Unit, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Serial = serial.String
	item.ReservedBy = reservedBy.String
	item.Category = category.String
	if locationID.Valid {
		item.LocationID = &locationID.Int64
	}
	if holderID.Valid {
		item.HolderID = &holderID.Int64
	}
	return item, nil
}
