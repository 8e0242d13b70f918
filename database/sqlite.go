package database

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"
)

const MemoryDSN = ":memory:"

// OpenSQLite opens a sqlite database file (or ":memory:").
// The pool is limited to a single connection: every call of the bridge runs
// in one transaction on that connection, and an in-memory database exists
// only once per connection.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunInTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, leaving no partial update behind.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.WithField("err", rbErr).Error("failed to rollback")
		}
		return err
	}

	return tx.Commit()
}
