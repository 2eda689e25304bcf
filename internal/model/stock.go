package model

// StockLevel aggregates the quantity an owner holds of one definition in
// one status.
type StockLevel struct {
	OwnerID      int64      `json:"owner_id"`
	DefinitionID int64      `json:"definition_id"`
	Kind         ItemKind   `json:"kind"`
	Status       ItemStatus `json:"status"`
	Quantity     int        `json:"quantity"`
	Reserved     int        `json:"reserved"`

	// Joined fields (not always populated).
	Name      string `json:"name,omitempty"`
	Unit      string `json:"unit,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`
	OwnerType string `json:"owner_type,omitempty"`
}

// DefinitionTotal is the system-wide quantity of a definition in a status.
type DefinitionTotal struct {
	Status   ItemStatus `json:"status"`
	Quantity int        `json:"quantity"`
}
