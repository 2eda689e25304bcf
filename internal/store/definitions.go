package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

const definitionColumns = `id, kind, name, category, unit, description, image_mime, created_at, updated_at, deleted_at`

// CreateDefinition creates a new catalog definition.
func CreateDefinition(ctx context.Context, q db.Querier, kind model.ItemKind, name, category, unit, description string) (*model.Definition, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid definition kind %q", kind)
	}
	if unit == "" {
		unit = model.DefaultUnit
	}

	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO definitions (kind, name, category, unit, description) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		string(kind), name, nullString(category), unit, nullString(description),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating definition: %w", err)
	}

	return GetDefinition(ctx, q, id)
}

// GetDefinition returns a definition by ID, including soft-deleted ones.
func GetDefinition(ctx context.Context, q db.Querier, id int64) (*model.Definition, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM definitions WHERE id = ?`, id,
	)
	d, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting definition: %w", err)
	}
	return d, nil
}

// ListDefinitions returns all non-deleted definitions, optionally filtered by kind.
func ListDefinitions(ctx context.Context, q db.Querier, kind model.ItemKind) ([]model.Definition, error) {
	var rows *sql.Rows
	var err error

	if kind != "" {
		rows, err = q.QueryContext(ctx,
			`SELECT `+definitionColumns+` FROM definitions
			 WHERE deleted_at IS NULL AND kind = ? ORDER BY name`, string(kind),
		)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT `+definitionColumns+` FROM definitions
			 WHERE deleted_at IS NULL ORDER BY name`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing definitions: %w", err)
	}
	defer rows.Close()

	var defs []model.Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning definition: %w", err)
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

// UpdateDefinition updates a definition's metadata. Items already in the
// registry keep the snapshot taken when they were received.
func UpdateDefinition(ctx context.Context, q db.Querier, id int64, name, category, unit, description string) error {
	if unit == "" {
		unit = model.DefaultUnit
	}
	_, err := q.ExecContext(ctx,
		`UPDATE definitions SET name = ?, category = ?, unit = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		name, nullString(category), unit, nullString(description), id,
	)
	if err != nil {
		return fmt.Errorf("updating definition: %w", err)
	}
	return nil
}

// DeleteDefinition soft-deletes a definition.
func DeleteDefinition(ctx context.Context, q db.Querier, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE definitions SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting definition: %w", err)
	}
	return nil
}

// SetDefinitionImage sets a definition's image data.
func SetDefinitionImage(ctx context.Context, q db.Querier, id int64, image []byte, mime string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE definitions SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting definition image: %w", err)
	}
	return nil
}

// GetDefinitionImage returns a definition's image data and MIME type.
func GetDefinitionImage(ctx context.Context, q db.Querier, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM definitions WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting definition image: %w", err)
	}
	return image, mime.String, nil
}

// Catalog serves definitions from the local definitions table.
type Catalog struct {
	DB db.Querier
}

// GetDefinition returns the active definition with the given ID, or nil if
// it does not exist or was deleted.
func (c *Catalog) GetDefinition(ctx context.Context, id int64) (*model.Definition, error) {
	d, err := GetDefinition(ctx, c.DB, id)
	if err != nil || d == nil || d.DeletedAt != nil {
		return nil, err
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*model.Definition, error) {
	d := &model.Definition{}
	var category, description, imageMime sql.NullString
	if err := row.Scan(&d.ID, &d.Kind, &d.Name, &category, &d.Unit, &description, &imageMime,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt); err != nil {
		return nil, err
	}
	d.Category = category.String
	d.Description = description.String
	d.ImageMime = imageMime.String
	return d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
