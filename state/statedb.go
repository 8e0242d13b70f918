package state

import (
	"database/sql"
	"errors"

	"github.com/TEENet-io/token-bridge/database"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

var ErrKeyNotFound = errors.New("key not found in kv table")

// StateDB persists the bridge state: transfers and their confirmations,
// validators, tokens and the governance singleton.
//
// A StateDB returned by NewStateDB works directly on the database. WithTx
// returns a view whose reads and writes all go through the given
// transaction.
type StateDB struct {
	stmtCache *database.StmtCache
	tx        *sql.Tx
}

func NewStateDB(db *sql.DB) (*StateDB, error) {
	// 1. Create the tables.
	if _, err := db.Exec(transferTable + confirmationTable + validatorTable + tokenTable + kvTable); err != nil {
		return nil, err
	}

	// 2. A stmt cache + db.
	return &StateDB{
		stmtCache: database.NewStmtCache(db),
	}, nil
}

// WithTx binds the state db to tx. The returned value must not be used
// after tx is committed or rolled back.
func (st *StateDB) WithTx(tx *sql.Tx) *StateDB {
	return &StateDB{stmtCache: st.stmtCache, tx: tx}
}

func (st *StateDB) Close() {
	if st.tx != nil {
		return
	}
	st.stmtCache.Clear()
}

func (st *StateDB) prepare(query string) (*sql.Stmt, error) {
	return st.stmtCache.PrepareTx(st.tx, query)
}

func (st *StateDB) GetKeyedValue(key ethcommon.Hash) (string, bool, error) {
	query := `SELECT value FROM kv WHERE key = ?`
	stmt, err := st.prepare(query)
	if err != nil {
		return "", false, err
	}

	var value string
	keyHex := key.String()[2:]
	if err := stmt.QueryRow(keyHex).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}

	return value, true, nil
}

func (st *StateDB) SetKeyedValue(key ethcommon.Hash, value string) error {
	query := `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`
	stmt, err := st.prepare(query)
	if err != nil {
		return err
	}

	keyHex := key.String()[2:]
	if _, err := stmt.Exec(keyHex, value); err != nil {
		return err
	}

	return nil
}
