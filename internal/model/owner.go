package model

import "time"

// Owner is a scope that can hold inventory: a warehouse location or a
// field technician.
type Owner struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Owner types.
const (
	OwnerTypeLocation   = "location"
	OwnerTypeTechnician = "technician"
)

// ValidOwnerType reports whether t is a known owner type.
func ValidOwnerType(t string) bool {
	return t == OwnerTypeLocation || t == OwnerTypeTechnician
}
