package state

import (
	"database/sql"
)

func (st *StateDB) SetTokenSupported(symbol string, supported bool) error {
	if symbol == "" {
		return ErrorTokenInvalid
	}

	query := `INSERT OR REPLACE INTO tokens (symbol, supported) VALUES (?, ?)`
	stmt, err := st.prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(symbol, supported)
	return err
}

// IsTokenSupported returns false for unknown symbols.
func (st *StateDB) IsTokenSupported(symbol string) (bool, error) {
	query := `SELECT supported FROM tokens WHERE symbol = ?`
	stmt, err := st.prepare(query)
	if err != nil {
		return false, err
	}

	var supported bool
	if err := stmt.QueryRow(symbol).Scan(&supported); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}

	return supported, nil
}

func (st *StateDB) GetTokens() ([]*TokenConfig, error) {
	query := `SELECT symbol, supported FROM tokens ORDER BY symbol`
	stmt, err := st.prepare(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []*TokenConfig{}
	for rows.Next() {
		var tc TokenConfig
		if err := rows.Scan(&tc.Symbol, &tc.Supported); err != nil {
			return nil, err
		}
		tokens = append(tokens, &tc)
	}

	return tokens, rows.Err()
}
