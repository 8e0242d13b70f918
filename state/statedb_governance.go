package state

import (
	"errors"
	"strconv"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	KeyOwner          = common.StorageKey("owner")
	KeyTreasury       = common.StorageKey("treasury")
	KeyFeeRateBps     = common.StorageKey("feeRateBps")
	KeyEmergencyHalt  = common.StorageKey("emergencyHalt")
	KeyNextTransferId = common.StorageKey("nextTransferId")
	KeyTotalWeight    = common.StorageKey("totalWeight")

	ErrGovernanceNotInitialized = errors.New("governance not initialized")
)

// HasGovernance reports whether genesis has been applied.
func (st *StateDB) HasGovernance() (bool, error) {
	_, ok, err := st.GetKeyedValue(KeyOwner)
	return ok, err
}

func (st *StateDB) GetGovernance() (*Governance, error) {
	owner, ok, err := st.GetKeyedValue(KeyOwner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGovernanceNotInitialized
	}

	treasury, err := st.mustGet(KeyTreasury)
	if err != nil {
		return nil, err
	}
	feeRate, err := st.getUint(KeyFeeRateBps)
	if err != nil {
		return nil, err
	}
	halt, err := st.mustGet(KeyEmergencyHalt)
	if err != nil {
		return nil, err
	}
	emergencyHalt, err := strconv.ParseBool(halt)
	if err != nil {
		return nil, err
	}

	return &Governance{
		Owner:         agreement.Principal(owner),
		Treasury:      agreement.Principal(treasury),
		FeeRateBps:    feeRate,
		EmergencyHalt: emergencyHalt,
	}, nil
}

func (st *StateDB) PutGovernance(g *Governance) error {
	if g.Owner == "" || g.Treasury == "" {
		return ErrorSenderInvalid
	}

	if err := st.SetKeyedValue(KeyOwner, g.Owner.String()); err != nil {
		return err
	}
	if err := st.SetKeyedValue(KeyTreasury, g.Treasury.String()); err != nil {
		return err
	}
	if err := st.setUint(KeyFeeRateBps, g.FeeRateBps); err != nil {
		return err
	}
	return st.SetKeyedValue(KeyEmergencyHalt, strconv.FormatBool(g.EmergencyHalt))
}

// NextTransferId returns the id the next transfer will get, 0 initially.
func (st *StateDB) NextTransferId() (uint64, error) {
	return st.getUintOrZero(KeyNextTransferId)
}

// AllocTransferId returns the next id and advances the counter. Ids are
// never handed out twice.
func (st *StateDB) AllocTransferId() (uint64, error) {
	id, err := st.NextTransferId()
	if err != nil {
		return 0, err
	}
	next, err := common.SafeAdd(id, 1)
	if err != nil {
		return 0, err
	}
	if err := st.setUint(KeyNextTransferId, next); err != nil {
		return 0, err
	}
	return id, nil
}

func (st *StateDB) GetTotalWeight() (uint64, error) {
	return st.getUintOrZero(KeyTotalWeight)
}

// RecomputeTotalWeight stores the sum of the weights of active validators.
func (st *StateDB) RecomputeTotalWeight() (uint64, error) {
	total, err := st.SumActiveWeight()
	if err != nil {
		return 0, err
	}
	if err := st.setUint(KeyTotalWeight, total); err != nil {
		return 0, err
	}
	return total, nil
}

func (st *StateDB) mustGet(key ethcommon.Hash) (string, error) {
	v, ok, err := st.GetKeyedValue(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (st *StateDB) getUint(key ethcommon.Hash) (uint64, error) {
	v, err := st.mustGet(key)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

func (st *StateDB) getUintOrZero(key ethcommon.Hash) (uint64, error) {
	v, ok, err := st.GetKeyedValue(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func (st *StateDB) setUint(key ethcommon.Hash, v uint64) error {
	return st.SetKeyedValue(key, strconv.FormatUint(v, 10))
}
