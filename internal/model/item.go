package model

import "time"

// ItemKind distinguishes serialized devices from fungible materials.
type ItemKind string

// Item kinds.
const (
	KindDevice   ItemKind = "device"
	KindMaterial ItemKind = "material"
)

// Valid reports whether k is a known kind.
func (k ItemKind) Valid() bool {
	return k == KindDevice || k == KindMaterial
}

// ItemStatus is the lifecycle state of an inventory item.
type ItemStatus string

// Item statuses.
const (
	StatusAvailable           ItemStatus = "available"
	StatusAssigned            ItemStatus = "assigned"
	StatusCollectedFromClient ItemStatus = "collected_from_client"
	StatusReturned            ItemStatus = "returned"
	StatusReturnedToOperator  ItemStatus = "returned_to_operator"
)

// Live reports whether the status still counts against a device serial.
func (s ItemStatus) Live() bool {
	return s != StatusReturnedToOperator
}

// Item is one row of the item registry: a single serialized device or one
// lot of a material. Exactly one of LocationID and HolderID is set.
type Item struct {
	ID           string     `json:"id"`
	Kind         ItemKind   `json:"kind"`
	DefinitionID int64      `json:"definition_id"`
	Serial       string     `json:"serial,omitempty"`
	Quantity     int        `json:"quantity"`
	LocationID   *int64     `json:"location_id,omitempty"`
	HolderID     *int64     `json:"holder_id,omitempty"`
	Status       ItemStatus `json:"status"`
	Reserved     bool       `json:"reserved"`
	ReservedBy   string     `json:"reserved_by,omitempty"`

	// Catalog snapshot taken when the item was received.
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Unit     string `json:"unit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnerID returns the owner currently holding the item.
func (i *Item) OwnerID() int64 {
	if i.LocationID != nil {
		return *i.LocationID
	}
	if i.HolderID != nil {
		return *i.HolderID
	}
	return 0
}

// HeldBy reports whether the item is held by the given owner.
func (i *Item) HeldBy(ownerID int64) bool {
	return i.OwnerID() == ownerID
}
