package bridge

import (
	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/common"
	"github.com/TEENet-io/token-bridge/state"
	perrors "github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

// AddValidator inserts principal or overwrites its weight, and marks it
// active.
func (s *Session) AddValidator(principal agreement.Principal, weight uint64) (bool, error) {
	if _, err := s.requireOwner(); err != nil {
		return false, err
	}
	if weight == 0 || weight > common.MaxStorableAmount {
		return false, fail(ErrInvalidAmount, "validator weight %d", weight)
	}
	if principal == "" {
		return false, fail(ErrInvalidRecipient, "empty validator")
	}

	v := &state.Validator{Principal: principal, Weight: weight, Active: true}
	if err := s.st.UpsertValidator(v); err != nil {
		return false, perrors.Wrapf(err, "failed to store validator %s", principal)
	}
	total, err := s.st.RecomputeTotalWeight()
	if err != nil {
		if perrors.Is(err, common.ErrOverflow) {
			return false, fail(ErrInvalidAmount, "total weight overflows")
		}
		return false, perrors.Wrap(err, "failed to update total weight")
	}

	logger.WithFields(logger.Fields{
		"validator":   principal,
		"weight":      weight,
		"totalWeight": total,
	}).Info("validator added")
	return true, nil
}

// RemoveValidator deactivates principal. Its weight is kept so that a later
// AddValidator can reactivate it.
func (s *Session) RemoveValidator(principal agreement.Principal) (bool, error) {
	if _, err := s.requireOwner(); err != nil {
		return false, err
	}

	_, ok, err := s.st.GetValidator(principal)
	if err != nil {
		return false, perrors.Wrapf(err, "failed to read validator %s", principal)
	}
	if !ok {
		return false, fail(ErrNotFound, "validator %s", principal)
	}

	if err := s.st.SetValidatorActive(principal, false); err != nil {
		return false, perrors.Wrapf(err, "failed to deactivate validator %s", principal)
	}
	total, err := s.st.RecomputeTotalWeight()
	if err != nil {
		return false, perrors.Wrap(err, "failed to update total weight")
	}

	logger.WithFields(logger.Fields{
		"validator":   principal,
		"totalWeight": total,
	}).Info("validator removed")
	return true, nil
}

func (s *Session) IsValidator(principal agreement.Principal) bool {
	return s.GetValidatorWeight(principal) > 0
}

// GetValidatorWeight returns 0 for absent or inactive validators.
func (s *Session) GetValidatorWeight(principal agreement.Principal) uint64 {
	w, err := s.validatorWeight(principal)
	if err != nil {
		logger.WithFields(logger.Fields{"validator": principal, "err": err}).Error("failed to read validator")
		return 0
	}
	return w
}

func (s *Session) validatorWeight(principal agreement.Principal) (uint64, error) {
	v, ok, err := s.st.GetValidator(principal)
	if err != nil {
		return 0, perrors.Wrapf(err, "failed to read validator %s", principal)
	}
	if !ok || !v.Active {
		return 0, nil
	}
	return v.Weight, nil
}

func (s *Session) GetValidator(principal agreement.Principal) (*state.Validator, error) {
	v, ok, err := s.st.GetValidator(principal)
	if err != nil {
		return nil, perrors.Wrapf(err, "failed to read validator %s", principal)
	}
	if !ok {
		return nil, fail(ErrNotFound, "validator %s", principal)
	}
	return v, nil
}

func (s *Session) GetActiveValidators() ([]*state.Validator, error) {
	vs, err := s.st.GetActiveValidators()
	if err != nil {
		return nil, perrors.Wrap(err, "failed to list validators")
	}
	return vs, nil
}

// TotalWeight is the sum of the weights of active validators.
func (s *Session) TotalWeight() (uint64, error) {
	total, err := s.st.GetTotalWeight()
	if err != nil {
		return 0, perrors.Wrap(err, "failed to read total weight")
	}
	return total, nil
}

// confirmingWeight sums the current weights of the confirmers. Validators
// removed after confirming count 0.
func (s *Session) confirmingWeight(t *state.Transfer) (uint64, error) {
	var sum uint64
	for _, v := range t.ConfirmedBy {
		w, err := s.validatorWeight(v)
		if err != nil {
			return 0, err
		}
		if sum, err = common.SafeAdd(sum, w); err != nil {
			return 0, err
		}
	}
	return sum, nil
}
