package database

import (
	"database/sql"
	"sync"
)

// to cache prepared sql statement, which maps query string to stmt.
type StmtCache struct {
	db *sql.DB
	m  sync.Map
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db}
}

func (sc *StmtCache) DB() *sql.DB {
	return sc.db
}

func (sc *StmtCache) Prepare(query string) (*sql.Stmt, error) {
	cached, _ := sc.m.Load(query)
	if cached == nil {
		stmt, err := sc.db.Prepare(query)
		if err != nil {
			return nil, err
		}
		sc.m.Store(query, stmt)
		cached = stmt
	}
	return cached.(*sql.Stmt), nil
}

// PrepareTx returns a statement bound to tx. A cached statement is rebound
// with tx.Stmt. An uncached query is prepared on tx directly and not cached,
// since preparing on the pool would need a second connection while tx holds
// the only one.
func (sc *StmtCache) PrepareTx(tx *sql.Tx, query string) (*sql.Stmt, error) {
	if tx == nil {
		return sc.Prepare(query)
	}
	if cached, ok := sc.m.Load(query); ok {
		return tx.Stmt(cached.(*sql.Stmt)), nil
	}
	return tx.Prepare(query)
}

// Warm prepares the given queries on the pool so that later calls of
// PrepareTx can rebind them.
func (sc *StmtCache) Warm(queries ...string) error {
	for _, q := range queries {
		if _, err := sc.Prepare(q); err != nil {
			return err
		}
	}
	return nil
}

func (sc *StmtCache) Clear() {
	sc.m.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		sc.m.Delete(k)
		return true
	})
}
