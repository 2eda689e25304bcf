package store

import (
	"context"
	"fmt"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

const stockSelect = `SELECT o.id, i.definition_id, i.kind, i.status,
	        SUM(i.quantity) AS quantity,
	        SUM(CASE WHEN i.reserved THEN i.quantity ELSE 0 END) AS reserved,
	        d.name, d.unit, o.name, o.type
	 FROM items i
	 JOIN owners o ON o.id = COALESCE(i.location_id, i.holder_id)
	 JOIN definitions d ON d.id = i.definition_id
	 WHERE i.quantity > 0 AND i.status <> ?`

const stockGroup = ` GROUP BY o.id, i.definition_id, i.kind, i.status, d.name, d.unit, o.name, o.type`

// ListStock returns the stock overview across all owners: one row per
// owner, definition and status.
func ListStock(ctx context.Context, q db.Querier) ([]model.StockLevel, error) {
	return queryStock(ctx, q,
		stockSelect+stockGroup+` ORDER BY d.name, o.name, i.status`,
		string(model.StatusReturnedToOperator),
	)
}

// StockByOwner returns what a single location or technician holds.
func StockByOwner(ctx context.Context, q db.Querier, ownerID int64) ([]model.StockLevel, error) {
	return queryStock(ctx, q,
		stockSelect+` AND o.id = ?`+stockGroup+` ORDER BY d.name, i.status`,
		string(model.StatusReturnedToOperator), ownerID,
	)
}

// GetDefinitionDistribution returns where a definition's live stock is.
func GetDefinitionDistribution(ctx context.Context, q db.Querier, definitionID int64) ([]model.StockLevel, error) {
	return queryStock(ctx, q,
		stockSelect+` AND i.definition_id = ?`+stockGroup+` ORDER BY o.type, o.name, i.status`,
		string(model.StatusReturnedToOperator), definitionID,
	)
}

func queryStock(ctx context.Context, q db.Querier, query string, args ...any) ([]model.StockLevel, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	defer rows.Close()

	var levels []model.StockLevel
	for rows.Next() {
		var s model.StockLevel
		if err := rows.Scan(&s.OwnerID, &s.DefinitionID, &s.Kind, &s.Status, &s.Quantity, &s.Reserved,
			&s.Name, &s.Unit, &s.OwnerName, &s.OwnerType); err != nil {
			return nil, fmt.Errorf("scanning stock: %w", err)
		}
		levels = append(levels, s)
	}
	return levels, rows.Err()
}

// DefinitionTotals returns the system-wide quantity of a definition per
// status, including units returned to the operator.
func DefinitionTotals(ctx context.Context, q db.Querier, definitionID int64) ([]model.DefinitionTotal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT status, SUM(quantity) FROM items
		 WHERE definition_id = ? AND quantity > 0
		 GROUP BY status ORDER BY status`, definitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting definition totals: %w", err)
	}
	defer rows.Close()

	var totals []model.DefinitionTotal
	for rows.Next() {
		var t model.DefinitionTotal
		if err := rows.Scan(&t.Status, &t.Quantity); err != nil {
			return nil, fmt.Errorf("scanning definition total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
