package ledger

import (
	"errors"
	"fmt"

	"github.com/TEENet-io/token-bridge/agreement"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAmountInvalid     = errors.New("amount invalid")
	ErrAccountInvalid    = errors.New("account invalid")
	ErrTokenInvalid      = errors.New("token invalid")
)

// Balance is the holding of one account in one token.
type Balance struct {
	Account agreement.Principal `json:"account"`
	Token   string              `json:"token"`
	Amount  uint64              `json:"amount"`
}

func (b *Balance) String() string {
	return fmt.Sprintf("Balance { Account: %s, Token: %s, Amount: %d }", b.Account, b.Token, b.Amount)
}

// Ledger defines the account ledger the bridge escrows funds through.
type Ledger interface {
	// Balance returns the amount of token held by account, 0 if unknown
	Balance(token string, account agreement.Principal) (uint64, error)

	// Mint credits amount of token to account out of thin air. It is used to
	// fund accounts at genesis and in tests.
	Mint(token string, account agreement.Principal, amount uint64) error

	// Transfer moves amount of token from one account to another. It fails
	// with ErrInsufficientFunds if from holds less than amount.
	Transfer(token string, from, to agreement.Principal, amount uint64) error

	// Balances lists all non-zero holdings of account ordered by token
	Balances(account agreement.Principal) ([]*Balance, error)
}
