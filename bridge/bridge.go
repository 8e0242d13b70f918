package bridge

import (
	"database/sql"
	"errors"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/ledger"
	"github.com/TEENet-io/token-bridge/quorum"
	"github.com/TEENet-io/token-bridge/state"
	perrors "github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

var ErrConfigInvalid = errors.New("bridge config invalid")

// CallContext is what the host supplies for every call.
type CallContext interface {
	Caller() agreement.Principal
	BlockHeight() uint64
	Tx() *sql.Tx
	Emit(ev agreement.Event)
}

// Bridge owns the persistent stores. All mutations go through a Session
// bound to the transaction of a single call.
type Bridge struct {
	cfg     *Config
	statedb *state.StateDB
	ledger  *ledger.SQLiteLedger
}

func New(cfg *Config, statedb *state.StateDB, l *ledger.SQLiteLedger) (*Bridge, error) {
	if cfg.Owner == "" || cfg.Escrow == "" || cfg.Custodian == "" {
		return nil, perrors.Wrap(ErrConfigInvalid, "owner, escrow and custodian must be set")
	}
	if cfg.Escrow == cfg.Custodian {
		return nil, perrors.Wrap(ErrConfigInvalid, "escrow and custodian must differ")
	}
	if cfg.GenesisFeeRateBps > MaxFeeRateBps {
		return nil, perrors.Wrapf(ErrConfigInvalid, "genesis fee rate %d > %d", cfg.GenesisFeeRateBps, MaxFeeRateBps)
	}
	if cfg.Quorum == nil {
		cfg.Quorum = quorum.DefaultPolicy()
	}

	return &Bridge{cfg: cfg, statedb: statedb, ledger: l}, nil
}

func (b *Bridge) Config() *Config {
	return b.cfg
}

// StateDB returns the state db working outside of any call. Use it for
// reads only.
func (b *Bridge) StateDB() *state.StateDB {
	return b.statedb
}

func (b *Bridge) Ledger() *ledger.SQLiteLedger {
	return b.ledger
}

// Session binds the stores to the transaction of cc.
func (b *Bridge) Session(cc CallContext) *Session {
	return &Session{
		cfg:    b.cfg,
		caller: cc.Caller(),
		height: cc.BlockHeight(),
		st:     b.statedb.WithTx(cc.Tx()),
		ledger: b.ledger.WithTx(cc.Tx()),
		sink:   cc,
	}
}

// View returns a read-only session outside of any call.
func (b *Bridge) View() *Session {
	return &Session{
		cfg:    b.cfg,
		st:     b.statedb,
		ledger: b.ledger,
		sink:   discard{},
	}
}

// Session executes the operations of one call on behalf of its caller.
type Session struct {
	cfg    *Config
	caller agreement.Principal
	height uint64
	st     *state.StateDB
	ledger ledger.Ledger
	sink   agreement.EventSink
}

type discard struct{}

func (discard) Emit(agreement.Event) {}

// Genesis seeds governance, the native token and the owner as validator.
// It is a no-op once applied.
func (s *Session) Genesis() (bool, error) {
	ok, err := s.st.HasGovernance()
	if err != nil {
		return false, perrors.Wrap(err, "failed to read governance")
	}
	if ok {
		return false, nil
	}

	g := &state.Governance{
		Owner:      s.cfg.Owner,
		Treasury:   s.cfg.Owner,
		FeeRateBps: s.cfg.GenesisFeeRateBps,
	}
	if err := s.st.PutGovernance(g); err != nil {
		return false, perrors.Wrap(err, "failed to store governance")
	}
	if err := s.st.SetTokenSupported(NativeToken, true); err != nil {
		return false, perrors.Wrap(err, "failed to register native token")
	}
	if err := s.st.UpsertValidator(&state.Validator{Principal: s.cfg.Owner, Weight: 1, Active: true}); err != nil {
		return false, perrors.Wrap(err, "failed to add owner as validator")
	}
	if _, err := s.st.RecomputeTotalWeight(); err != nil {
		return false, perrors.Wrap(err, "failed to update total weight")
	}

	for _, a := range s.cfg.Allocations {
		token := a.Token
		if token == "" {
			token = NativeToken
		}
		if err := s.ledger.Mint(token, a.Account, a.Amount); err != nil {
			return false, perrors.Wrapf(err, "failed to fund %s", a.Account)
		}
	}

	logger.WithFields(logger.Fields{
		"owner":      g.Owner,
		"feeRateBps": g.FeeRateBps,
		"lockPeriod": s.cfg.LockPeriod,
		"quorum":     s.cfg.Quorum,
	}).Info("bridge genesis applied")

	return true, nil
}

func (s *Session) Caller() agreement.Principal {
	return s.caller
}

func (s *Session) Height() uint64 {
	return s.height
}

func (s *Session) governance() (*state.Governance, error) {
	g, err := s.st.GetGovernance()
	if err != nil {
		return nil, perrors.Wrap(err, "failed to read governance")
	}
	return g, nil
}

func (s *Session) requireOwner() (*state.Governance, error) {
	g, err := s.governance()
	if err != nil {
		return nil, err
	}
	if s.caller != g.Owner {
		return nil, fail(ErrUnauthorized, "%s is not the owner", s.caller)
	}
	return g, nil
}

// isBridgeAccount reports whether p is one of the accounts the bridge moves
// funds through. These never act as transfer senders.
func (s *Session) isBridgeAccount(p agreement.Principal) bool {
	return p == s.cfg.Escrow || p == s.cfg.Custodian
}

// moveFunds maps ledger shortfalls to ErrInsufficientFunds. Zero amounts
// are skipped.
func (s *Session) moveFunds(token string, from, to agreement.Principal, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := s.ledger.Transfer(token, from, to, amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return fail(ErrInsufficientFunds, "%s holds less than %d %s", from, amount, token)
		}
		return perrors.Wrapf(err, "failed to move %d %s from %s to %s", amount, token, from, to)
	}
	return nil
}
