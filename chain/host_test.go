package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/common"
	"github.com/TEENet-io/token-bridge/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test failure")

func newTestHost(t *testing.T) (*Host, func()) {
	db, err := database.OpenSQLite(database.MemoryDSN)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE counter (n INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO counter (n) VALUES (0)`)
	require.NoError(t, err)

	h, err := NewHost(db)
	require.NoError(t, err)
	return h, func() { db.Close() }
}

func increment(emit bool, fail bool) CallFunc {
	return func(cc *CallContext) (interface{}, error) {
		if _, err := cc.Tx().Exec(`UPDATE counter SET n = n + 1`); err != nil {
			return nil, err
		}
		if emit {
			cc.Emit(&agreement.TransferConfirmedEvent{Id: 1, Validator: cc.Caller(), Height: cc.BlockHeight()})
		}
		if fail {
			return nil, errTest
		}
		return cc.BlockHeight(), nil
	}
}

func readCounter(t *testing.T, h *Host) int {
	var n int
	require.NoError(t, h.DB().QueryRow(`SELECT n FROM counter`).Scan(&n))
	return n
}

func TestMineBlock(t *testing.T) {
	h, close := newTestHost(t)
	defer close()
	ctx := context.Background()

	alice := common.RandPrincipal()
	assert.Equal(t, uint64(0), h.Height())

	receipts, err := h.MineBlock(ctx,
		NewTx(alice, increment(true, false)),
		NewTx(alice, increment(true, true)),
		NewTx(alice, increment(false, false)),
	)
	assert.NoError(t, err)
	assert.Len(t, receipts, 3)
	assert.Equal(t, uint64(1), h.Height())

	assert.True(t, receipts[0].Ok())
	assert.Equal(t, uint64(1), receipts[0].Result)
	assert.Len(t, receipts[0].Events, 1)

	// failed call is rolled back and emits nothing
	assert.Equal(t, errTest, receipts[1].Err)
	assert.Empty(t, receipts[1].Events)
	assert.Nil(t, receipts[1].Result)

	assert.True(t, receipts[2].Ok())
	assert.Equal(t, 2, receipts[2].Index)
	assert.Equal(t, 2, readCounter(t, h))

	_, err = h.Call(ctx, "", increment(false, false))
	assert.Equal(t, ErrEmptySender, err)
}

func TestMineEmptyBlocksAndRestore(t *testing.T) {
	h, close := newTestHost(t)
	defer close()
	ctx := context.Background()

	assert.NoError(t, h.MineEmptyBlocks(ctx, 145))
	assert.Equal(t, uint64(145), h.Height())

	res, err := h.Call(ctx, common.RandPrincipal(), increment(false, false))
	assert.NoError(t, err)
	assert.Equal(t, uint64(146), res)

	// a new host on the same db continues at the stored height
	h2, err := NewHost(h.DB())
	assert.NoError(t, err)
	assert.Equal(t, uint64(146), h2.Height())
}

func TestView(t *testing.T) {
	h, close := newTestHost(t)
	defer close()
	ctx := context.Background()

	res, err := h.View(ctx, common.RandPrincipal(), increment(true, false))
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), res)
	assert.Equal(t, 0, readCounter(t, h))
	assert.Equal(t, uint64(0), h.Height())
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	h, close := newTestHost(t)
	defer close()
	ctx := context.Background()

	events := make(chan agreement.Event, 10)
	executed := make(chan *agreement.TransferExecutedEvent, 10)
	blocks := make(chan uint64, 10)
	h.Publisher().RegisterEventObserver(events)
	h.Publisher().RegisterExecutedObserver(executed)
	h.Publisher().RegisterBlockObserver(blocks)

	_, err := h.Call(ctx, common.RandPrincipal(), increment(true, true))
	assert.Equal(t, errTest, err)
	assert.Len(t, events, 0)
	assert.Equal(t, uint64(1), <-blocks)

	_, err = h.Call(ctx, common.RandPrincipal(), func(cc *CallContext) (interface{}, error) {
		cc.Emit(&agreement.TransferExecutedEvent{Id: 3, Released: 10, Height: cc.BlockHeight()})
		return true, nil
	})
	assert.NoError(t, err)

	ev := <-events
	assert.Equal(t, uint64(3), ev.(*agreement.TransferExecutedEvent).Id)
	assert.Equal(t, uint64(2), (<-executed).Height)
}

func TestRunIncludesSubmittedTxs(t *testing.T) {
	h, close := newTestHost(t)
	defer close()

	alice := common.RandPrincipal()

	// nothing is queued without a block producer
	receipt := <-h.Submit(NewTx(alice, increment(false, false)))
	assert.Equal(t, ErrMempoolClosed, receipt.Err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- h.Run(ctx, MinBlockTime)
	}()
	require.Eventually(t, h.Running, 5*time.Second, 10*time.Millisecond)

	r1 := h.Submit(NewTx(alice, increment(false, false)))
	r2 := h.Submit(NewTx(alice, increment(false, true)))

	select {
	case receipt := <-r1:
		assert.True(t, receipt.Ok())
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for receipt")
	}
	receipt = <-r2
	assert.Equal(t, errTest, receipt.Err)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
	assert.Equal(t, 1, readCounter(t, h))

	receipt = <-h.Submit(NewTx(alice, increment(false, false)))
	assert.Equal(t, ErrMempoolClosed, receipt.Err)
}
