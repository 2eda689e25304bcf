package model

import "time"

// ProposalStatus is the state of a transfer proposal.
type ProposalStatus string

// Proposal statuses. Everything except pending is terminal.
const (
	ProposalPending   ProposalStatus = "pending"
	ProposalConfirmed ProposalStatus = "confirmed"
	ProposalRejected  ProposalStatus = "rejected"
	ProposalCancelled ProposalStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s ProposalStatus) Terminal() bool {
	return s != ProposalPending
}

// Proposal is a request to move items between two owners of the same type.
type Proposal struct {
	ID          string         `json:"id"`
	ScopeType   string         `json:"scope_type"`
	FromOwnerID int64          `json:"from_owner_id"`
	ToOwnerID   int64          `json:"to_owner_id"`
	Status      ProposalStatus `json:"status"`
	Notes       string         `json:"notes,omitempty"`
	CreatedBy   int64          `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	SettledBy   *int64         `json:"settled_by,omitempty"`
	SettledAt   *time.Time     `json:"settled_at,omitempty"`
	SettleNotes string         `json:"settle_notes,omitempty"`
	Lines       []ProposalLine `json:"lines"`
}

// ProposalLine is one requested movement. Snapshots are captured when the
// proposal is created and never refreshed.
type ProposalLine struct {
	Position         int      `json:"position"`
	ItemKind         ItemKind `json:"item_kind"`
	Quantity         int      `json:"quantity"`
	SourceItemID     string   `json:"source_item_id,omitempty"`
	DefinitionID     int64    `json:"definition_id"`
	NameSnapshot     string   `json:"name"`
	SerialSnapshot   string   `json:"serial,omitempty"`
	CategorySnapshot string   `json:"category,omitempty"`
	UnitSnapshot     string   `json:"unit"`
}
