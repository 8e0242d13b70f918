/*
SQLiteRelayDB implements RelayDB.
Table is relays

It may share the sql db with the state db since all statements run on the
pool and none is held open across calls.
*/
package relaydb

import (
	"database/sql"
	"errors"

	"github.com/TEENet-io/token-bridge/database"
)

var (
	ErrRelayExists   = errors.New("relay of the transfer already exists")
	ErrRelayNotFound = errors.New("relay not found")
)

type SQLiteRelayDB struct {
	stmtCache *database.StmtCache
}

func NewSQLiteRelayDB(db *sql.DB) (*SQLiteRelayDB, error) {
	storage := &SQLiteRelayDB{stmtCache: database.NewStmtCache(db)}
	if err := storage.init(); err != nil {
		return nil, err
	}

	return storage, nil
}

// Table's row structure is according to Relay
func (s *SQLiteRelayDB) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS relays (
		transferId BIGINT UNSIGNED PRIMARY KEY NOT NULL,
		recipient VARCHAR(128) NOT NULL,
		token VARCHAR(32) NOT NULL,
		amount BIGINT UNSIGNED NOT NULL,
		status VARCHAR(10) NOT NULL,
		attempts BIGINT UNSIGNED NOT NULL DEFAULT 0,
		foreignRef TEXT NOT NULL DEFAULT '',
		lastError TEXT NOT NULL DEFAULT '',
		CONSTRAINT chk_status CHECK (status IN ('submitted', 'settled', 'failed'))
	);
	CREATE INDEX IF NOT EXISTS idx_relays_status ON relays (status);
	`
	_, err := s.stmtCache.DB().Exec(query)
	return err
}

func (s *SQLiteRelayDB) Close() {
	s.stmtCache.Clear()
}

func (s *SQLiteRelayDB) InsertRelay(r *Relay) error {
	existing, err := s.GetRelay(r.TransferId)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrRelayExists
	}

	stmt, err := s.stmtCache.Prepare(`
	INSERT INTO relays (transferId, recipient, token, amount, status, attempts, foreignRef, lastError)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(r.TransferId, r.Recipient, r.Token, r.Amount, string(r.Status), r.Attempts, r.ForeignRef, r.LastError)
	return err
}

func (s *SQLiteRelayDB) GetRelay(transferId uint64) (*Relay, error) {
	stmt, err := s.stmtCache.Prepare(`
	SELECT transferId, recipient, token, amount, status, attempts, foreignRef, lastError
	FROM relays WHERE transferId = ?;
	`)
	if err != nil {
		return nil, err
	}

	r, err := scanRelay(stmt.QueryRow(transferId))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteRelayDB) GetRelaysByStatus(status RelayStatus) ([]*Relay, error) {
	stmt, err := s.stmtCache.Prepare(`
	SELECT transferId, recipient, token, amount, status, attempts, foreignRef, lastError
	FROM relays WHERE status = ? ORDER BY transferId;
	`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	relays := []*Relay{}
	for rows.Next() {
		r, err := scanRelay(rows)
		if err != nil {
			return nil, err
		}
		relays = append(relays, r)
	}
	return relays, rows.Err()
}

func (s *SQLiteRelayDB) MarkSubmitted(transferId uint64) error {
	return s.update(`UPDATE relays SET status = ?, attempts = attempts + 1 WHERE transferId = ?;`,
		string(Submitted), transferId)
}

func (s *SQLiteRelayDB) MarkSettled(transferId uint64, foreignRef string) error {
	return s.update(`UPDATE relays SET status = ?, foreignRef = ?, lastError = '' WHERE transferId = ?;`,
		string(Settled), foreignRef, transferId)
}

func (s *SQLiteRelayDB) MarkFailed(transferId uint64, reason string) error {
	return s.update(`UPDATE relays SET status = ?, lastError = ? WHERE transferId = ?;`,
		string(Failed), reason, transferId)
}

func (s *SQLiteRelayDB) update(query string, args ...interface{}) error {
	stmt, err := s.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	res, err := stmt.Exec(args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRelayNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRelay(row rowScanner) (*Relay, error) {
	var (
		r      Relay
		status string
	)
	if err := row.Scan(&r.TransferId, &r.Recipient, &r.Token, &r.Amount, &status, &r.Attempts, &r.ForeignRef, &r.LastError); err != nil {
		return nil, err
	}
	r.Status = RelayStatus(status)
	return &r, nil
}
