package state

import (
	"database/sql"
	"errors"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/common"
)

var ErrorWeightInvalid = errors.New("validator weight invalid")

// UpsertValidator inserts the validator or overwrites weight and active
// flag of an existing one.
func (st *StateDB) UpsertValidator(v *Validator) error {
	if v.Principal == "" {
		return ErrorSenderInvalid
	}
	if v.Weight == 0 || v.Weight > common.MaxStorableAmount {
		return ErrorWeightInvalid
	}

	query := `INSERT OR REPLACE INTO validators (principal, weight, active) VALUES (?, ?, ?)`
	stmt, err := st.prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(v.Principal.String(), v.Weight, v.Active)
	return err
}

func (st *StateDB) GetValidator(p agreement.Principal) (*Validator, bool, error) {
	query := `SELECT principal, weight, active FROM validators WHERE principal = ?`
	stmt, err := st.prepare(query)
	if err != nil {
		return nil, false, err
	}

	var (
		principal string
		v         Validator
	)
	if err := stmt.QueryRow(p.String()).Scan(&principal, &v.Weight, &v.Active); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	v.Principal = agreement.Principal(principal)

	return &v, true, nil
}

// SetValidatorActive flips the active flag and keeps the weight.
func (st *StateDB) SetValidatorActive(p agreement.Principal, active bool) error {
	query := `UPDATE validators SET active = ? WHERE principal = ?`
	stmt, err := st.prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(active, p.String())
	return err
}

// GetActiveValidators returns active validators ordered by principal.
func (st *StateDB) GetActiveValidators() ([]*Validator, error) {
	query := `SELECT principal, weight, active FROM validators WHERE active = 1 ORDER BY principal`
	stmt, err := st.prepare(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	validators := []*Validator{}
	for rows.Next() {
		var (
			principal string
			v         Validator
		)
		if err := rows.Scan(&principal, &v.Weight, &v.Active); err != nil {
			return nil, err
		}
		v.Principal = agreement.Principal(principal)
		validators = append(validators, &v)
	}

	return validators, rows.Err()
}

// SumActiveWeight sums the weights of all active validators.
func (st *StateDB) SumActiveWeight() (uint64, error) {
	validators, err := st.GetActiveValidators()
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, v := range validators {
		if total, err = common.SafeAdd(total, v.Weight); err != nil {
			return 0, err
		}
	}
	return total, nil
}
