package model

import "time"

// Definition is a catalog entry: a device model or a material type.
type Definition struct {
	ID          int64      `json:"id"`
	Kind        ItemKind   `json:"kind"`
	Name        string     `json:"name"`
	Category    string     `json:"category,omitempty"`
	Unit        string     `json:"unit"`
	Description string     `json:"description,omitempty"`
	ImageMime   string     `json:"image_mime,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// DefaultUnit is used when a definition does not name one.
const DefaultUnit = "pcs"
