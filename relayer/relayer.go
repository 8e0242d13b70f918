package relayer

import (
	"context"
	"errors"
	"time"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/relaydb"
	"github.com/TEENet-io/token-bridge/state"
	logger "github.com/sirupsen/logrus"
)

const MinRelayInterval = 100 * time.Millisecond

type RelayerConfig struct {
	// Loop's retry interval
	IntervalCheckTime time.Duration

	// Give up on a relay after so many attempts, 0 never gives up
	MaxAttempts uint64
}

// TransferSource lists transfers of the bridge.
type TransferSource interface {
	ListTransfersByStatus(status agreement.TransferStatus) ([]*state.Transfer, error)
}

// Relayer pays out executed transfers on the foreign chain through a
// Settler and keeps track of every payout in the relay db.
type Relayer struct {
	cfg      *RelayerConfig
	db       relaydb.RelayDB
	settler  agreement.Settler
	source   TransferSource
	executed chan *agreement.TransferExecutedEvent
}

func New(cfg *RelayerConfig, db relaydb.RelayDB, settler agreement.Settler, source TransferSource) *Relayer {
	return &Relayer{
		cfg:      cfg,
		db:       db,
		settler:  settler,
		source:   source,
		executed: make(chan *agreement.TransferExecutedEvent, 64),
	}
}

// ExecutedChannel is to be registered with the host publisher.
func (r *Relayer) ExecutedChannel() chan *agreement.TransferExecutedEvent {
	return r.executed
}

// Recover relays completed transfers missing in the relay db, e.g. those
// executed while the relayer was down.
func (r *Relayer) Recover() error {
	completed, err := r.source.ListTransfersByStatus(agreement.TransferStatusCompleted)
	if err != nil {
		return err
	}

	for _, t := range completed {
		relay, err := r.db.GetRelay(t.Id)
		if err != nil {
			return err
		}
		if relay != nil {
			continue
		}

		logger.WithField("id", t.Id).Info("recovering unrelayed transfer")
		r.handle(&agreement.TransferExecutedEvent{
			Id:        t.Id,
			Recipient: t.Recipient,
			Token:     t.Token,
			Released:  t.Amount - t.Fee,
			Fee:       t.Fee,
			Height:    t.ClosedAt,
		})
	}
	return nil
}

// Loop relays incoming executed transfers and retries failed ones until ctx
// is cancelled.
func (r *Relayer) Loop(ctx context.Context) error {
	logger.Debug("starting relayer")
	defer logger.Debug("stopping relayer")

	interval := r.cfg.IntervalCheckTime
	if interval < MinRelayInterval {
		interval = MinRelayInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := r.Recover(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.executed:
			r.handle(ev)
		case <-ticker.C:
			if err := r.retry(); err != nil {
				logger.Errorf("failed to retry relays: err=%v", err)
			}
		}
	}
}

func (r *Relayer) handle(ev *agreement.TransferExecutedEvent) {
	err := r.db.InsertRelay(&relaydb.Relay{
		TransferId: ev.Id,
		Recipient:  ev.Recipient,
		Token:      ev.Token,
		Amount:     ev.Released,
		Status:     relaydb.Submitted,
	})
	if errors.Is(err, relaydb.ErrRelayExists) {
		logger.WithField("id", ev.Id).Debug("transfer already relayed")
		return
	}
	if err != nil {
		logger.WithFields(logger.Fields{"id": ev.Id, "err": err}).Error("failed to record relay")
		return
	}

	r.settle(ev)
}

// retry settles failed relays and relays left submitted by a crash.
func (r *Relayer) retry() error {
	for _, status := range []relaydb.RelayStatus{relaydb.Failed, relaydb.Submitted} {
		relays, err := r.db.GetRelaysByStatus(status)
		if err != nil {
			return err
		}
		for _, relay := range relays {
			if r.exhausted(relay) {
				continue
			}
			r.settle(&agreement.TransferExecutedEvent{
				Id:        relay.TransferId,
				Recipient: relay.Recipient,
				Token:     relay.Token,
				Released:  relay.Amount,
			})
		}
	}
	return nil
}

func (r *Relayer) exhausted(relay *relaydb.Relay) bool {
	return r.cfg.MaxAttempts > 0 && relay.Attempts >= r.cfg.MaxAttempts
}

func (r *Relayer) settle(ev *agreement.TransferExecutedEvent) {
	if err := r.db.MarkSubmitted(ev.Id); err != nil {
		logger.WithFields(logger.Fields{"id": ev.Id, "err": err}).Error("failed to mark relay submitted")
		return
	}

	ref, err := r.settler.Settle(ev)
	if err != nil {
		logger.WithFields(logger.Fields{"id": ev.Id, "err": err}).Warn("settlement failed")
		if err := r.db.MarkFailed(ev.Id, err.Error()); err != nil {
			logger.WithFields(logger.Fields{"id": ev.Id, "err": err}).Error("failed to mark relay failed")
		}
		return
	}

	if err := r.db.MarkSettled(ev.Id, ref); err != nil {
		logger.WithFields(logger.Fields{"id": ev.Id, "err": err}).Error("failed to mark relay settled")
	}
}
