package model

import "time"

// Action is the kind of transition recorded in the ledger.
type Action string

// Ledger actions.
const (
	ActionReceived            Action = "received"
	ActionIssued              Action = "issued"
	ActionReturned            Action = "returned"
	ActionCollectedFromClient Action = "collected_from_client"
	ActionReturnedToOperator  Action = "returned_to_operator"
	ActionTransferProposed    Action = "transfer_proposed"
	ActionTransferConfirmed   Action = "transfer_confirmed"
	ActionTransferRejected    Action = "transfer_rejected"
	ActionTransferCancelled   Action = "transfer_cancelled"
)

// LedgerEntry is an immutable record of one transition applied to one item.
// QuantityDelta is the signed change applied to ItemID; when quantity moved
// into another lot, CounterpartItemID names that lot.
type LedgerEntry struct {
	ID                int64     `json:"id"`
	ItemID            string    `json:"item_id"`
	CounterpartItemID string    `json:"counterpart_item_id,omitempty"`
	Action            Action    `json:"action"`
	ActorID           int64     `json:"actor_id"`
	FromOwnerID       *int64    `json:"from_owner_id,omitempty"`
	ToOwnerID         *int64    `json:"to_owner_id,omitempty"`
	ProposalID        string    `json:"proposal_id,omitempty"`
	QuantityDelta     int       `json:"quantity_delta"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
