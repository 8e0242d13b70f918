package agreement

// Event is any of the *Transfer...Event types above.
// Events are only published after the call that produced them commits.
type Event interface {
	String() string
}

// EventSink collects events during a call.
// The host flushes them to observers once the call is committed
// and drops them if the call is rolled back.
type EventSink interface {
	Emit(ev Event)
}

// Settler is implemented by the off-system custodian that pays out
// completed transfers on the foreign chain.
type Settler interface {
	// Settle pays ev.Released of ev.Token to ev.Recipient on the foreign chain.
	// Returns a reference of the foreign transaction (e.g. a btc tx id).
	Settle(ev *TransferExecutedEvent) (string, error)
}
