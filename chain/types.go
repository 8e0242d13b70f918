package chain

import (
	"database/sql"
	"fmt"

	"github.com/TEENet-io/token-bridge/agreement"
)

// CallContext is handed to every call executed by the host. It exposes the
// authenticated caller, the height of the block the call is included in and
// the sql transaction all state access of the call must go through.
type CallContext struct {
	sender agreement.Principal
	height uint64
	tx     *sql.Tx
	events []agreement.Event
}

func (cc *CallContext) Caller() agreement.Principal {
	return cc.sender
}

func (cc *CallContext) BlockHeight() uint64 {
	return cc.height
}

func (cc *CallContext) Tx() *sql.Tx {
	return cc.tx
}

// Emit buffers ev. Buffered events are published after the call commits
// and discarded if it fails.
func (cc *CallContext) Emit(ev agreement.Event) {
	cc.events = append(cc.events, ev)
}

// CallFunc is the body of a call. The returned value ends up in the receipt.
type CallFunc func(cc *CallContext) (interface{}, error)

// Tx is a call submitted by Sender.
type Tx struct {
	Sender agreement.Principal
	Fn     CallFunc
}

func NewTx(sender agreement.Principal, fn CallFunc) *Tx {
	return &Tx{Sender: sender, Fn: fn}
}

// Receipt is the outcome of a call included in a block.
type Receipt struct {
	Height uint64
	Index  int
	Sender agreement.Principal
	Result interface{}
	Err    error
	Events []agreement.Event
}

func (r *Receipt) Ok() bool {
	return r.Err == nil
}

func (r *Receipt) String() string {
	return fmt.Sprintf("Receipt { Height: %d, Index: %d, Sender: %s, Result: %v, Err: %v, Events: %d }",
		r.Height, r.Index, r.Sender, r.Result, r.Err, len(r.Events))
}
