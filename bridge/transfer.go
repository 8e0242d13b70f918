package bridge

import (
	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/common"
	"github.com/TEENet-io/token-bridge/state"
	perrors "github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

// InitiateTransfer escrows amount of symbol from the caller and records a
// pending transfer to recipient. It returns the id of the new transfer.
func (s *Session) InitiateTransfer(recipient, symbol string, amount uint64) (uint64, error) {
	if s.isBridgeAccount(s.caller) {
		return 0, fail(ErrUnauthorized, "%s is a bridge account", s.caller)
	}
	g, err := s.governance()
	if err != nil {
		return 0, err
	}
	if g.EmergencyHalt {
		return 0, fail(ErrOperationFailed, "bridge halted")
	}
	supported, err := s.tokenSupported(symbol)
	if err != nil {
		return 0, err
	}
	if !supported {
		return 0, fail(ErrInvalidToken, "token %q not supported", symbol)
	}
	if amount == 0 || amount > common.MaxStorableAmount {
		return 0, fail(ErrInvalidAmount, "amount %d", amount)
	}
	if err := checkRecipient(s.cfg.RecipientPolicy, recipient); err != nil {
		return 0, err
	}
	unlockAt, err := common.SafeAdd(s.height, s.cfg.LockPeriod)
	if err != nil {
		return 0, fail(ErrOperationFailed, "unlock height overflows")
	}

	if err := s.moveFunds(symbol, s.caller, s.cfg.Escrow, amount); err != nil {
		return 0, err
	}

	id, err := s.st.AllocTransferId()
	if err != nil {
		return 0, perrors.Wrap(err, "failed to allocate transfer id")
	}

	t := &state.Transfer{
		Id:        id,
		Sender:    s.caller,
		Recipient: recipient,
		Token:     symbol,
		Amount:    amount,
		Status:    agreement.TransferStatusPending,
		CreatedAt: s.height,
		UnlockAt:  unlockAt,
	}
	if err := s.st.InsertTransfer(t); err != nil {
		return 0, perrors.Wrapf(err, "failed to store transfer %d", id)
	}

	s.sink.Emit(&agreement.TransferInitiatedEvent{
		Id:        id,
		Sender:    s.caller,
		Recipient: recipient,
		Token:     symbol,
		Amount:    amount,
		Height:    s.height,
	})

	logger.WithFields(logger.Fields{
		"id":        id,
		"sender":    s.caller,
		"recipient": common.Shorten(recipient, 16),
		"token":     symbol,
		"amount":    amount,
		"unlockAt":  unlockAt,
	}).Info("transfer initiated")
	return id, nil
}

// ConfirmTransfer records the caller's confirmation. Confirming twice is a
// successful no-op.
func (s *Session) ConfirmTransfer(id uint64) (bool, error) {
	weight, err := s.validatorWeight(s.caller)
	if err != nil {
		return false, err
	}
	if weight == 0 {
		return false, fail(ErrUnauthorized, "%s is not an active validator", s.caller)
	}

	t, err := s.pendingTransfer(id)
	if err != nil {
		return false, err
	}

	inserted, err := s.st.InsertConfirmation(id, s.caller, s.height)
	if err != nil {
		return false, perrors.Wrapf(err, "failed to store confirmation of transfer %d", id)
	}
	if !inserted {
		logger.WithFields(logger.Fields{"id": id, "validator": s.caller}).Debug("transfer already confirmed")
		return true, nil
	}

	confirmations := t.Confirmations() + 1
	s.sink.Emit(&agreement.TransferConfirmedEvent{
		Id:            id,
		Validator:     s.caller,
		Confirmations: confirmations,
		Height:        s.height,
	})

	logger.WithFields(logger.Fields{
		"id":            id,
		"validator":     s.caller,
		"confirmations": confirmations,
	}).Info("transfer confirmed")
	return true, nil
}

// ExecuteTransfer completes a confirmed and unlocked transfer. The fee goes
// to the treasury and the rest to the custodian that settles on the foreign
// chain. Anyone may execute.
func (s *Session) ExecuteTransfer(id uint64) (bool, error) {
	t, err := s.pendingTransfer(id)
	if err != nil {
		return false, err
	}

	confirming, err := s.confirmingWeight(t)
	if err != nil {
		return false, perrors.Wrapf(err, "failed to sum confirming weight of transfer %d", id)
	}
	total, err := s.TotalWeight()
	if err != nil {
		return false, err
	}
	if !s.cfg.Quorum.Reached(confirming, total) {
		return false, fail(ErrInsufficientConfirmations, "transfer %d has weight %d of %d required",
			id, confirming, s.cfg.Quorum.Threshold(total))
	}
	if !t.Unlocked(s.height) {
		return false, fail(ErrLockedPeriod, "transfer %d unlocks at %d, height %d", id, t.UnlockAt, s.height)
	}

	g, fee, err := s.fee(t)
	if err != nil {
		return false, err
	}
	released := t.Amount - fee

	if err := s.moveFunds(t.Token, s.cfg.Escrow, g.Treasury, fee); err != nil {
		return false, err
	}
	if err := s.moveFunds(t.Token, s.cfg.Escrow, s.cfg.Custodian, released); err != nil {
		return false, err
	}
	if err := s.st.CloseTransfer(id, agreement.TransferStatusCompleted, fee, s.height); err != nil {
		return false, perrors.Wrapf(err, "failed to complete transfer %d", id)
	}

	s.sink.Emit(&agreement.TransferExecutedEvent{
		Id:        id,
		Recipient: t.Recipient,
		Token:     t.Token,
		Released:  released,
		Fee:       fee,
		Height:    s.height,
	})

	logger.WithFields(logger.Fields{
		"id":       id,
		"released": released,
		"fee":      fee,
	}).Info("transfer executed")
	return true, nil
}

// CancelTransfer refunds a pending transfer to its sender minus the fee at
// the current rate.
func (s *Session) CancelTransfer(id uint64) (bool, error) {
	t, err := s.transfer(id)
	if err != nil {
		return false, err
	}
	if t.Sender != s.caller {
		return false, fail(ErrUnauthorized, "%s is not the sender of transfer %d", s.caller, id)
	}
	if !t.IsPending() {
		return false, fail(ErrInvalidState, "transfer %d is %s", id, t.Status)
	}

	g, fee, err := s.fee(t)
	if err != nil {
		return false, err
	}
	refunded := t.Amount - fee

	if err := s.moveFunds(t.Token, s.cfg.Escrow, g.Treasury, fee); err != nil {
		return false, err
	}
	if err := s.moveFunds(t.Token, s.cfg.Escrow, t.Sender, refunded); err != nil {
		return false, err
	}
	if err := s.st.CloseTransfer(id, agreement.TransferStatusCancelled, fee, s.height); err != nil {
		return false, perrors.Wrapf(err, "failed to cancel transfer %d", id)
	}

	s.sink.Emit(&agreement.TransferCancelledEvent{
		Id:       id,
		Sender:   t.Sender,
		Refunded: refunded,
		Fee:      fee,
		Height:   s.height,
	})

	logger.WithFields(logger.Fields{
		"id":       id,
		"refunded": refunded,
		"fee":      fee,
	}).Info("transfer cancelled")
	return true, nil
}

func (s *Session) GetTransfer(id uint64) (*state.Transfer, error) {
	return s.transfer(id)
}

// ListTransfersByStatus returns transfers of the given status by ascending id.
func (s *Session) ListTransfersByStatus(status agreement.TransferStatus) ([]*state.Transfer, error) {
	if !status.Valid() {
		return nil, fail(ErrInvalidState, "status %q", status)
	}
	ts, err := s.st.GetTransfersByStatus(status)
	if err != nil {
		return nil, perrors.Wrapf(err, "failed to list %s transfers", status)
	}
	return ts, nil
}

// TransferCount is the number of transfers ever initiated, which is also
// the id of the next one.
func (s *Session) TransferCount() (uint64, error) {
	n, err := s.st.NextTransferId()
	if err != nil {
		return 0, perrors.Wrap(err, "failed to read transfer counter")
	}
	return n, nil
}

func (s *Session) transfer(id uint64) (*state.Transfer, error) {
	t, ok, err := s.st.GetTransfer(id)
	if err != nil {
		return nil, perrors.Wrapf(err, "failed to read transfer %d", id)
	}
	if !ok {
		return nil, fail(ErrNotFound, "transfer %d", id)
	}
	return t, nil
}

func (s *Session) pendingTransfer(id uint64) (*state.Transfer, error) {
	t, err := s.transfer(id)
	if err != nil {
		return nil, err
	}
	if !t.IsPending() {
		return nil, fail(ErrInvalidState, "transfer %d is %s", id, t.Status)
	}
	return t, nil
}

// fee is floor(amount * rate / 10000) at the current rate.
func (s *Session) fee(t *state.Transfer) (*state.Governance, uint64, error) {
	g, err := s.governance()
	if err != nil {
		return nil, 0, err
	}
	fee, err := common.MulDiv(t.Amount, g.FeeRateBps, FeeRateDenominator)
	if err != nil {
		return nil, 0, perrors.Wrapf(err, "failed to compute fee of transfer %d", t.Id)
	}
	return g, fee, nil
}
