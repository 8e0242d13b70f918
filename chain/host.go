package chain

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/database"
	logger "github.com/sirupsen/logrus"
)

const MinBlockTime = 100 * time.Millisecond

var (
	ErrEmptySender   = errors.New("call without sender")
	ErrMempoolClosed = errors.New("host is not producing blocks")
)

var hostTable = `CREATE TABLE IF NOT EXISTS host (
	key VARCHAR(32) PRIMARY KEY NOT NULL,
	value BIGINT UNSIGNED NOT NULL
);`

type pendingTx struct {
	tx   *Tx
	resp chan *Receipt
}

// Host stands in for the ledger that orders and finalizes calls. Calls are
// executed strictly one after another, each inside its own sql transaction,
// and time is the height of the last mined block.
type Host struct {
	mu        sync.Mutex
	db        *sql.DB
	height    uint64
	publisher *PublisherService

	mempoolMu sync.Mutex
	mempool   []*pendingTx
	running   bool
}

// NewHost restores the height persisted in db, 0 for a fresh database.
func NewHost(db *sql.DB) (*Host, error) {
	if _, err := db.Exec(hostTable); err != nil {
		return nil, err
	}

	var height uint64
	err := db.QueryRow(`SELECT value FROM host WHERE key = 'height'`).Scan(&height)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &Host{
		db:        db,
		height:    height,
		publisher: NewPublisherService(),
	}, nil
}

func (h *Host) DB() *sql.DB {
	return h.db
}

func (h *Host) Publisher() *PublisherService {
	return h.publisher
}

// Height returns the height of the last mined block.
func (h *Host) Height() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.height
}

// MineBlock mines a new block including txs in the given order and returns
// one receipt per tx. A failing tx leaves no trace besides its receipt. The
// returned error is only set when the block itself could not be mined.
func (h *Host) MineBlock(ctx context.Context, txs ...*Tx) ([]*Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	height := h.height + 1
	if err := h.setHeight(ctx, height); err != nil {
		return nil, err
	}

	receipts := make([]*Receipt, 0, len(txs))
	for i, tx := range txs {
		receipts = append(receipts, h.execute(ctx, height, i, tx))
	}

	h.publisher.NotifyBlock(height)
	return receipts, nil
}

// MineEmptyBlocks advances the height by n.
func (h *Host) MineEmptyBlocks(ctx context.Context, n uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n == 0 {
		return nil
	}
	height := h.height + n
	if err := h.setHeight(ctx, height); err != nil {
		return err
	}

	h.publisher.NotifyBlock(height)
	return nil
}

// Call mines a block holding a single call and returns the call's result.
func (h *Host) Call(ctx context.Context, sender agreement.Principal, fn CallFunc) (interface{}, error) {
	receipts, err := h.MineBlock(ctx, NewTx(sender, fn))
	if err != nil {
		return nil, err
	}
	return receipts[0].Result, receipts[0].Err
}

// View runs fn at the current height without mining. fn must not mutate
// state: the transaction is always rolled back and no event is published.
func (h *Host) View(ctx context.Context, sender agreement.Principal, fn CallFunc) (interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	return fn(&CallContext{sender: sender, height: h.height, tx: tx})
}

func (h *Host) execute(ctx context.Context, height uint64, index int, tx *Tx) *Receipt {
	receipt := &Receipt{Height: height, Index: index, Sender: tx.Sender}
	if tx.Sender == "" {
		receipt.Err = ErrEmptySender
		return receipt
	}

	cc := &CallContext{sender: tx.Sender, height: height}
	receipt.Err = database.RunInTx(ctx, h.db, func(sqlTx *sql.Tx) error {
		cc.tx = sqlTx
		result, err := tx.Fn(cc)
		if err != nil {
			return err
		}
		receipt.Result = result
		return nil
	})
	if receipt.Err != nil {
		logger.WithFields(logger.Fields{
			"height": height,
			"index":  index,
			"sender": tx.Sender,
			"err":    receipt.Err,
		}).Debug("call failed")
		return receipt
	}

	receipt.Events = cc.events
	for _, ev := range cc.events {
		h.publisher.NotifyEvent(ev)
	}
	return receipt
}

func (h *Host) setHeight(ctx context.Context, height uint64) error {
	if _, err := h.db.ExecContext(ctx, `INSERT OR REPLACE INTO host (key, value) VALUES ('height', ?)`, height); err != nil {
		return err
	}
	h.height = height
	return nil
}

// Running reports whether Run is producing blocks.
func (h *Host) Running() bool {
	h.mempoolMu.Lock()
	defer h.mempoolMu.Unlock()

	return h.running
}

// Submit queues tx for the next block produced by Run. The receipt is
// delivered on the returned channel. Without a running block producer the
// receipt fails with ErrMempoolClosed.
func (h *Host) Submit(tx *Tx) <-chan *Receipt {
	resp := make(chan *Receipt, 1)

	h.mempoolMu.Lock()
	defer h.mempoolMu.Unlock()
	if !h.running {
		resp <- &Receipt{Sender: tx.Sender, Err: ErrMempoolClosed}
		return resp
	}
	h.mempool = append(h.mempool, &pendingTx{tx: tx, resp: resp})

	return resp
}

// Run produces a block every blockTime including all queued txs, until ctx
// is cancelled.
func (h *Host) Run(ctx context.Context, blockTime time.Duration) error {
	if blockTime < MinBlockTime {
		blockTime = MinBlockTime
	}

	h.mempoolMu.Lock()
	h.running = true
	h.mempoolMu.Unlock()

	logger.WithField("blockTime", blockTime).Debug("starting block production")
	defer func() {
		logger.Debug("stopping block production")
		h.drain()
	}()

	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.mempoolMu.Lock()
			pending := h.mempool
			h.mempool = nil
			h.mempoolMu.Unlock()

			txs := make([]*Tx, 0, len(pending))
			for _, p := range pending {
				txs = append(txs, p.tx)
			}

			receipts, err := h.MineBlock(ctx, txs...)
			if err != nil {
				for _, p := range pending {
					p.resp <- &Receipt{Sender: p.tx.Sender, Err: err}
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.WithField("err", err).Error("failed to mine block")
				continue
			}
			for i, p := range pending {
				p.resp <- receipts[i]
			}
		}
	}
}

// drain fails all txs still queued when block production stops.
func (h *Host) drain() {
	h.mempoolMu.Lock()
	defer h.mempoolMu.Unlock()

	for _, p := range h.mempool {
		p.resp <- &Receipt{Sender: p.tx.Sender, Err: ErrMempoolClosed}
	}
	h.mempool = nil
	h.running = false
}
