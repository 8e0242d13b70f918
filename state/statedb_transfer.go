package state

import (
	"database/sql"
	"errors"

	"github.com/TEENet-io/token-bridge/agreement"
)

var (
	ErrTransferExists         = errors.New("transfer with the same id already exists")
	ErrTransferStatusConflict = errors.New("transfer not found in the expected status")
)

// InsertTransfer stores a newly initiated transfer. Only pending
// transfers without confirmations can be inserted.
func (st *StateDB) InsertTransfer(t *Transfer) error {
	if t.Status != agreement.TransferStatusPending || len(t.ConfirmedBy) != 0 {
		return ErrorRequireStatusPending
	}

	ok, _, err := st.HasTransfer(t.Id)
	if err != nil {
		return err
	}
	if ok {
		return ErrTransferExists
	}

	query := `INSERT INTO transfers (` + transferColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := st.prepare(query)
	if err != nil {
		return err
	}

	s, err := encode(t)
	if err != nil {
		return err
	}

	if _, err := stmt.Exec(
		s.Id,
		s.Sender,
		s.Recipient,
		s.Token,
		s.Amount,
		s.Fee,
		s.Status,
		s.CreatedAt,
		s.UnlockAt,
		s.ClosedAt,
	); err != nil {
		return err
	}

	return nil
}

// GetTransfer returns the transfer together with its confirmers.
func (st *StateDB) GetTransfer(id uint64) (*Transfer, bool, error) {
	query := `SELECT` + transferColumns + `FROM transfers WHERE id = ?`
	stmt, err := st.prepare(query)
	if err != nil {
		return nil, false, err
	}

	var s sqlTransfer
	if err := s.scan(stmt.QueryRow(id)); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}

	t := s.decode()
	if t.ConfirmedBy, err = st.GetConfirmers(id); err != nil {
		return nil, false, err
	}

	return t, true, nil
}

func (st *StateDB) HasTransfer(id uint64) (bool, agreement.TransferStatus, error) {
	query := `SELECT status FROM transfers WHERE id = ?`
	stmt, err := st.prepare(query)
	if err != nil {
		return false, "", err
	}

	var status string
	if err := stmt.QueryRow(id).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return false, "", nil
		}
		return false, "", err
	}

	return true, agreement.TransferStatus(status), nil
}

// GetTransfersByStatus returns transfers in ascending id order.
func (st *StateDB) GetTransfersByStatus(status agreement.TransferStatus) ([]*Transfer, error) {
	query := `SELECT` + transferColumns + `FROM transfers WHERE status = ? ORDER BY id`
	stmt, err := st.prepare(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(string(status))
	if err != nil {
		return nil, err
	}

	transfers := []*Transfer{}
	for rows.Next() {
		var s sqlTransfer
		if err := s.scan(rows); err != nil {
			rows.Close()
			return nil, err
		}
		transfers = append(transfers, s.decode())
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before loading confirmers.
	rows.Close()

	for _, t := range transfers {
		if t.ConfirmedBy, err = st.GetConfirmers(t.Id); err != nil {
			return nil, err
		}
	}

	return transfers, nil
}

// CountTransfers returns the number of stored transfers of any status.
func (st *StateDB) CountTransfers() (uint64, error) {
	query := `SELECT COUNT(*) FROM transfers`
	stmt, err := st.prepare(query)
	if err != nil {
		return 0, err
	}

	var n uint64
	if err := stmt.QueryRow().Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// InsertConfirmation records that validator confirmed transfer id at the given
// height. It returns false if the validator had already confirmed.
func (st *StateDB) InsertConfirmation(id uint64, validator agreement.Principal, height uint64) (bool, error) {
	query := `INSERT OR IGNORE INTO confirmations (transferId, validator, height) VALUES (?, ?, ?)`
	stmt, err := st.prepare(query)
	if err != nil {
		return false, err
	}

	res, err := stmt.Exec(id, validator.String(), height)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetConfirmers returns the validators that confirmed the transfer in the
// order they confirmed.
func (st *StateDB) GetConfirmers(id uint64) ([]agreement.Principal, error) {
	query := `SELECT validator FROM confirmations WHERE transferId = ? ORDER BY rowid`
	stmt, err := st.prepare(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	confirmers := []agreement.Principal{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		confirmers = append(confirmers, agreement.Principal(v))
	}

	return confirmers, rows.Err()
}

// CloseTransfer moves a pending transfer into a terminal status and records
// the fee charged and the closing height. The update only applies while the
// stored status is still pending.
func (st *StateDB) CloseTransfer(id uint64, status agreement.TransferStatus, fee, height uint64) error {
	if !status.IsTerminal() {
		return ErrorStatusInvalid
	}

	query := `UPDATE transfers SET status = ?, fee = ?, closedAt = ? WHERE id = ? AND status = ?`
	stmt, err := st.prepare(query)
	if err != nil {
		return err
	}

	res, err := stmt.Exec(string(status), fee, height, id, string(agreement.TransferStatusPending))
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrTransferStatusConflict
	}

	return nil
}
