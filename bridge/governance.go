package bridge

import (
	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/state"
	perrors "github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

func (s *Session) GetGovernance() (*state.Governance, error) {
	return s.governance()
}

func (s *Session) SetTreasury(treasury agreement.Principal) (bool, error) {
	g, err := s.requireOwner()
	if err != nil {
		return false, err
	}
	if treasury == "" {
		return false, fail(ErrInvalidRecipient, "empty treasury")
	}

	g.Treasury = treasury
	if err := s.st.PutGovernance(g); err != nil {
		return false, perrors.Wrap(err, "failed to store governance")
	}

	logger.WithField("treasury", treasury).Info("treasury updated")
	return true, nil
}

// TransferOwnership hands over all owner authority within the same call.
func (s *Session) TransferOwnership(owner agreement.Principal) (bool, error) {
	g, err := s.requireOwner()
	if err != nil {
		return false, err
	}
	if owner == "" {
		return false, fail(ErrInvalidRecipient, "empty owner")
	}

	g.Owner = owner
	if err := s.st.PutGovernance(g); err != nil {
		return false, perrors.Wrap(err, "failed to store governance")
	}

	logger.WithFields(logger.Fields{
		"from": s.caller,
		"to":   owner,
	}).Info("ownership transferred")
	return true, nil
}

func (s *Session) SetFeeRate(bps uint64) (bool, error) {
	g, err := s.requireOwner()
	if err != nil {
		return false, err
	}
	if bps > MaxFeeRateBps {
		return false, fail(ErrInvalidAmount, "fee rate %d > %d", bps, MaxFeeRateBps)
	}

	g.FeeRateBps = bps
	if err := s.st.PutGovernance(g); err != nil {
		return false, perrors.Wrap(err, "failed to store governance")
	}

	logger.WithField("feeRateBps", bps).Info("fee rate updated")
	return true, nil
}

// EmergencyToggle flips the halt flag and returns the new value.
func (s *Session) EmergencyToggle() (bool, error) {
	g, err := s.requireOwner()
	if err != nil {
		return false, err
	}

	g.EmergencyHalt = !g.EmergencyHalt
	if err := s.st.PutGovernance(g); err != nil {
		return false, perrors.Wrap(err, "failed to store governance")
	}

	logger.WithField("halted", g.EmergencyHalt).Warn("emergency halt toggled")
	return g.EmergencyHalt, nil
}
