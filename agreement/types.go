// Global agreement on types shared by the bridge packages.

package agreement

import (
	"fmt"
)

// Principal is an opaque caller/account identity on the source ledger.
type Principal string

func (p Principal) String() string {
	return string(p)
}

// TransferStatus is the life cycle status of a bridge transfer.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"   // escrowed, waiting for confirmations and unlock
	TransferStatusCompleted TransferStatus = "completed" // executed, relayer settles on the foreign chain
	TransferStatusCancelled TransferStatus = "cancelled" // refunded to sender minus fee
)

// IsTerminal reports whether no further transition is possible.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusCancelled
}

func (s TransferStatus) Valid() bool {
	switch s {
	case TransferStatusPending, TransferStatusCompleted, TransferStatusCancelled:
		return true
	}
	return false
}

// TransferInitiatedEvent is emitted when a sender escrows funds.
type TransferInitiatedEvent struct {
	Id        uint64
	Sender    Principal
	Recipient string // foreign chain address, e.g. a btc address
	Token     string
	Amount    uint64
	Height    uint64
}

func (ev *TransferInitiatedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// TransferConfirmedEvent is emitted once per (transfer, validator) pair.
// Re-confirmation does not emit.
type TransferConfirmedEvent struct {
	Id            uint64
	Validator     Principal
	Confirmations uint64
	Height        uint64
}

func (ev *TransferConfirmedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// TransferExecutedEvent is the event the relayer acts upon: the
// released amount is owed to Recipient on the foreign chain.
type TransferExecutedEvent struct {
	Id        uint64
	Recipient string
	Token     string
	Released  uint64 // amount - fee
	Fee       uint64
	Height    uint64
}

func (ev *TransferExecutedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// TransferCancelledEvent is emitted when the sender withdraws a pending transfer.
type TransferCancelledEvent struct {
	Id       uint64
	Sender   Principal
	Refunded uint64
	Fee      uint64
	Height   uint64
}

func (ev *TransferCancelledEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}
