package relaydb

import (
	"fmt"
)

// Relay tracks the foreign chain settlement of one executed transfer.
type Relay struct {
	TransferId uint64      `json:"transfer-id"` // Primary key, one relay per transfer.
	Recipient  string      `json:"recipient"`   // Foreign chain address.
	Token      string      `json:"token"`       // Token symbol.
	Amount     uint64      `json:"amount"`      // Released amount (transfer amount minus fee).
	Status     RelayStatus `json:"status"`      // See below
	Attempts   uint64      `json:"attempts"`    // Number of calls to the settler so far.
	ForeignRef string      `json:"foreign-ref"` // Reference of the foreign tx, empty until settled.
	LastError  string      `json:"last-error"`  // Error of the last failed attempt.
}

func (r *Relay) String() string {
	return fmt.Sprintf("Relay { TransferId: %d, Recipient: %s, Token: %s, Amount: %d, Status: %s, Attempts: %d, ForeignRef: %s }",
		r.TransferId, r.Recipient, r.Token, r.Amount, r.Status, r.Attempts, r.ForeignRef)
}

type RelayStatus string

const (
	Submitted RelayStatus = "submitted" // handed to the settler, outcome unknown
	Settled   RelayStatus = "settled"   // paid out on the foreign chain
	Failed    RelayStatus = "failed"    // last attempt failed, retried later
)

// RelayDB defines what the relayer stores, regardless of the underlying
// implementation.
type RelayDB interface {
	// Release the resource that db occupies, no error returned.
	Close()

	// Insert a new relay.
	// error = 1) duplicate insertion (same TransferId), 2) database error, etc ...
	InsertRelay(r *Relay) error

	// Get one relay by transfer id,
	// result can be nil (if not found)
	GetRelay(transferId uint64) (*Relay, error)

	// Get relays by status ordered by transfer id,
	// result can be empty slice (if not found)
	GetRelaysByStatus(status RelayStatus) ([]*Relay, error)

	// Mark an attempt: status becomes submitted and attempts increases by 1.
	MarkSubmitted(transferId uint64) error

	// Mark the relay settled with the foreign reference.
	MarkSettled(transferId uint64, foreignRef string) error

	// Mark the relay failed with the reason.
	MarkFailed(transferId uint64, reason string) error
}
