package ledger

import (
	"database/sql"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/common"
	"github.com/TEENet-io/token-bridge/database"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

var balanceTable = `CREATE TABLE IF NOT EXISTS balances (
	account VARCHAR(128) NOT NULL,
	token VARCHAR(32) NOT NULL,
	amount BIGINT UNSIGNED NOT NULL,
	PRIMARY KEY (account, token),
	CONSTRAINT chk_amount CHECK (amount >= 0)
);`

// SQLiteLedger implements Ledger on the balances table.
type SQLiteLedger struct {
	stmtCache *database.StmtCache
	tx        *sql.Tx
}

var _ Ledger = (*SQLiteLedger)(nil)

func NewSQLiteLedger(db *sql.DB) (*SQLiteLedger, error) {
	if _, err := db.Exec(balanceTable); err != nil {
		return nil, err
	}

	return &SQLiteLedger{
		stmtCache: database.NewStmtCache(db),
	}, nil
}

// WithTx binds the ledger to tx. The returned value must not be used after
// tx is committed or rolled back.
func (l *SQLiteLedger) WithTx(tx *sql.Tx) *SQLiteLedger {
	return &SQLiteLedger{stmtCache: l.stmtCache, tx: tx}
}

func (l *SQLiteLedger) Close() {
	if l.tx != nil {
		return
	}
	l.stmtCache.Clear()
}

func (l *SQLiteLedger) Balance(token string, account agreement.Principal) (uint64, error) {
	stmt, err := l.stmtCache.PrepareTx(l.tx, `SELECT amount FROM balances WHERE account = ? AND token = ?`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare balance query")
	}

	var amount uint64
	if err := stmt.QueryRow(account.String(), token).Scan(&amount); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "failed to read balance of %s", account)
	}
	return amount, nil
}

func (l *SQLiteLedger) setBalance(token string, account agreement.Principal, amount uint64) error {
	if amount > common.MaxStorableAmount {
		return common.ErrOverflow
	}

	stmt, err := l.stmtCache.PrepareTx(l.tx, `INSERT OR REPLACE INTO balances (account, token, amount) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare balance update")
	}

	if _, err := stmt.Exec(account.String(), token, amount); err != nil {
		return errors.Wrapf(err, "failed to write balance of %s", account)
	}
	return nil
}

func (l *SQLiteLedger) Mint(token string, account agreement.Principal, amount uint64) error {
	if err := checkArgs(token, account, amount); err != nil {
		return err
	}

	balance, err := l.Balance(token, account)
	if err != nil {
		return err
	}
	balance, err = common.SafeAdd(balance, amount)
	if err != nil {
		return err
	}

	return l.setBalance(token, account, balance)
}

func (l *SQLiteLedger) Transfer(token string, from, to agreement.Principal, amount uint64) error {
	if err := checkArgs(token, from, amount); err != nil {
		return err
	}
	if to == "" {
		return ErrAccountInvalid
	}

	fromBalance, err := l.Balance(token, from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		logger.WithFields(logger.Fields{
			"account": from,
			"token":   token,
			"balance": fromBalance,
			"amount":  amount,
		}).Debug("insufficient funds")
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}

	toBalance, err := l.Balance(token, to)
	if err != nil {
		return err
	}
	if toBalance, err = common.SafeAdd(toBalance, amount); err != nil {
		return err
	}

	if err := l.setBalance(token, from, fromBalance-amount); err != nil {
		return err
	}
	return l.setBalance(token, to, toBalance)
}

func (l *SQLiteLedger) Balances(account agreement.Principal) ([]*Balance, error) {
	stmt, err := l.stmtCache.PrepareTx(l.tx, `SELECT account, token, amount FROM balances WHERE account = ? AND amount > 0 ORDER BY token`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare balances query")
	}

	rows, err := stmt.Query(account.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list balances of %s", account)
	}
	defer rows.Close()

	balances := []*Balance{}
	for rows.Next() {
		var (
			acc string
			b   Balance
		)
		if err := rows.Scan(&acc, &b.Token, &b.Amount); err != nil {
			return nil, err
		}
		b.Account = agreement.Principal(acc)
		balances = append(balances, &b)
	}
	return balances, rows.Err()
}

func checkArgs(token string, account agreement.Principal, amount uint64) error {
	if token == "" {
		return ErrTokenInvalid
	}
	if account == "" {
		return ErrAccountInvalid
	}
	if amount == 0 {
		return ErrAmountInvalid
	}
	return nil
}
