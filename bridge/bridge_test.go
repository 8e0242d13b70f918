package bridge

import (
	"context"
	"testing"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/chain"
	"github.com/TEENet-io/token-bridge/common"
	"github.com/TEENet-io/token-bridge/database"
	"github.com/TEENet-io/token-bridge/ledger"
	"github.com/TEENet-io/token-bridge/quorum"
	"github.com/TEENet-io/token-bridge/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	btcRecipient    = "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"
	initialStx      = uint64(1000000000000)
	initialUsda     = uint64(1000)
	mainnetP2PKH    = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	stxTransferUnit = uint64(100000000)
)

type testEnv struct {
	host    *chain.Host
	bridge  *Bridge
	events  chan agreement.Event
	owner   agreement.Principal
	wallet1 agreement.Principal
	wallet2 agreement.Principal
	wallet3 agreement.Principal
}

func newTestEnv(t *testing.T, opts ...func(*Config)) (*testEnv, func()) {
	db, err := database.OpenSQLite(database.MemoryDSN)
	require.NoError(t, err)
	statedb, err := state.NewStateDB(db)
	require.NoError(t, err)
	l, err := ledger.NewSQLiteLedger(db)
	require.NoError(t, err)
	host, err := chain.NewHost(db)
	require.NoError(t, err)

	env := &testEnv{
		host:    host,
		events:  make(chan agreement.Event, 100),
		owner:   common.RandPrincipal(),
		wallet1: common.RandPrincipal(),
		wallet2: common.RandPrincipal(),
		wallet3: common.RandPrincipal(),
	}

	cfg := DefaultConfig(env.owner)
	cfg.Allocations = []Allocation{
		{Account: env.wallet1, Amount: initialStx},
		{Account: env.wallet1, Token: "usda", Amount: initialUsda},
		{Account: env.wallet2, Amount: initialStx},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	env.bridge, err = New(cfg, statedb, l)
	require.NoError(t, err)

	ok, err := env.call(env.owner, func(s *Session) (interface{}, error) {
		return s.Genesis()
	})
	require.NoError(t, err)
	require.Equal(t, true, ok)

	host.Publisher().RegisterEventObserver(env.events)

	return env, func() {
		statedb.Close()
		l.Close()
		db.Close()
	}
}

func (e *testEnv) call(sender agreement.Principal, fn func(s *Session) (interface{}, error)) (interface{}, error) {
	return e.host.Call(context.Background(), sender, func(cc *chain.CallContext) (interface{}, error) {
		return fn(e.bridge.Session(cc))
	})
}

func (e *testEnv) view() *Session {
	return e.bridge.View()
}

func (e *testEnv) mine(t *testing.T, n uint64) {
	require.NoError(t, e.host.MineEmptyBlocks(context.Background(), n))
}

func (e *testEnv) balance(t *testing.T, token string, account agreement.Principal) uint64 {
	b, err := e.bridge.Ledger().Balance(token, account)
	require.NoError(t, err)
	return b
}

func (e *testEnv) initiate(sender agreement.Principal, recipient, symbol string, amount uint64) (uint64, error) {
	id, err := e.call(sender, func(s *Session) (interface{}, error) {
		return s.InitiateTransfer(recipient, symbol, amount)
	})
	if err != nil {
		return 0, err
	}
	return id.(uint64), nil
}

func (e *testEnv) confirm(sender agreement.Principal, id uint64) error {
	_, err := e.call(sender, func(s *Session) (interface{}, error) {
		return s.ConfirmTransfer(id)
	})
	return err
}

func (e *testEnv) execute(sender agreement.Principal, id uint64) error {
	_, err := e.call(sender, func(s *Session) (interface{}, error) {
		return s.ExecuteTransfer(id)
	})
	return err
}

func (e *testEnv) cancel(sender agreement.Principal, id uint64) error {
	_, err := e.call(sender, func(s *Session) (interface{}, error) {
		return s.CancelTransfer(id)
	})
	return err
}

func (e *testEnv) addValidator(sender, validator agreement.Principal, weight uint64) error {
	_, err := e.call(sender, func(s *Session) (interface{}, error) {
		return s.AddValidator(validator, weight)
	})
	return err
}

func (e *testEnv) getTransfer(t *testing.T, id uint64) *state.Transfer {
	tr, err := e.view().GetTransfer(id)
	require.NoError(t, err)
	return tr
}

func (e *testEnv) drainEvents() []agreement.Event {
	evs := []agreement.Event{}
	for {
		select {
		case ev := <-e.events:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestGenesis(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	v := env.view()
	g, err := v.GetGovernance()
	assert.NoError(t, err)
	assert.Equal(t, &state.Governance{
		Owner:      env.owner,
		Treasury:   env.owner,
		FeeRateBps: DefaultGenesisFeeRateBps,
	}, g)

	assert.True(t, v.IsSupportedToken(NativeToken))
	assert.False(t, v.IsSupportedToken("usda"))
	assert.True(t, v.IsValidator(env.owner))
	assert.Equal(t, uint64(1), v.GetValidatorWeight(env.owner))
	total, err := v.TotalWeight()
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), total)

	assert.Equal(t, initialStx, env.balance(t, NativeToken, env.wallet1))
	assert.Equal(t, initialUsda, env.balance(t, "usda", env.wallet1))

	// applied once only
	ok, err := env.call(env.wallet1, func(s *Session) (interface{}, error) {
		return s.Genesis()
	})
	assert.NoError(t, err)
	assert.Equal(t, false, ok)
	assert.Equal(t, initialStx, env.balance(t, NativeToken, env.wallet1))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig("")
	_, err := New(cfg, nil, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	cfg = DefaultConfig(common.RandPrincipal())
	cfg.Custodian = cfg.Escrow
	_, err = New(cfg, nil, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	cfg = DefaultConfig(common.RandPrincipal())
	cfg.GenesisFeeRateBps = 1001
	_, err = New(cfg, nil, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRegisterToken(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	register := func(sender agreement.Principal, symbol string) error {
		_, err := env.call(sender, func(s *Session) (interface{}, error) {
			return s.RegisterToken(symbol)
		})
		return err
	}

	err := register(env.wallet1, "usda")
	assert.ErrorIs(t, err, ErrUnauthorized)
	code, _ := CodeOf(err)
	assert.Equal(t, Code(100), code)
	assert.False(t, env.view().IsSupportedToken("usda"))

	assert.NoError(t, register(env.owner, "usda"))
	assert.True(t, env.view().IsSupportedToken("usda"))

	// idempotent
	assert.NoError(t, register(env.owner, "usda"))
	assert.NoError(t, register(env.owner, NativeToken))

	assert.ErrorIs(t, register(env.owner, ""), ErrInvalidToken)
	assert.ErrorIs(t, register(env.owner, "abcdefghijklmnopqrstuvwxyz0123456"), ErrInvalidToken)
	assert.ErrorIs(t, register(env.owner, "us\nda"), ErrInvalidToken)

	tokens, err := env.view().GetTokens()
	assert.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestInitiateTransfer(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	_, err := env.initiate(env.wallet1, btcRecipient, "usda", 100)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.initiate(env.wallet1, btcRecipient, NativeToken, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.initiate(env.wallet1, btcRecipient, NativeToken, common.MaxStorableAmount+1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.initiate(env.wallet1, "", NativeToken, stxTransferUnit)
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	long := make([]byte, MaxRecipientLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = env.initiate(env.wallet1, string(long), NativeToken, stxTransferUnit)
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = env.initiate(env.wallet3, btcRecipient, NativeToken, stxTransferUnit)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	env.drainEvents()
	height := env.host.Height() + 1
	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	tr := env.getTransfer(t, 0)
	assert.Equal(t, env.wallet1, tr.Sender)
	assert.Equal(t, btcRecipient, tr.Recipient)
	assert.Equal(t, NativeToken, tr.Token)
	assert.Equal(t, stxTransferUnit, tr.Amount)
	assert.Equal(t, agreement.TransferStatusPending, tr.Status)
	assert.Equal(t, uint64(0), tr.Confirmations())
	assert.Equal(t, height, tr.CreatedAt)
	assert.Equal(t, height+DefaultLockPeriod, tr.UnlockAt)

	assert.Equal(t, initialStx-stxTransferUnit, env.balance(t, NativeToken, env.wallet1))
	assert.Equal(t, stxTransferUnit, env.balance(t, NativeToken, DefaultEscrow))

	evs := env.drainEvents()
	assert.Len(t, evs, 1)
	assert.Equal(t, &agreement.TransferInitiatedEvent{
		Id:        0,
		Sender:    env.wallet1,
		Recipient: btcRecipient,
		Token:     NativeToken,
		Amount:    stxTransferUnit,
		Height:    height,
	}, evs[0])

	// more than the remaining balance
	_, err = env.initiate(env.wallet1, btcRecipient, NativeToken, initialStx)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	count, err := env.view().TransferCount()
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	_, err = env.view().GetTransfer(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmAndExecute(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	assert.NoError(t, env.addValidator(env.owner, env.wallet2, 1))

	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)

	// only validators confirm
	assert.ErrorIs(t, env.confirm(env.wallet3, id), ErrUnauthorized)
	assert.ErrorIs(t, env.confirm(env.owner, 9), ErrNotFound)
	assert.ErrorIs(t, env.execute(env.owner, 9), ErrNotFound)

	env.drainEvents()
	assert.NoError(t, env.confirm(env.owner, id))
	assert.Equal(t, uint64(1), env.getTransfer(t, id).Confirmations())

	// re-confirmation is a no-op
	assert.NoError(t, env.confirm(env.owner, id))
	assert.Equal(t, uint64(1), env.getTransfer(t, id).Confirmations())
	assert.Len(t, env.drainEvents(), 1)

	// a single unit of weight is not enough
	env.mine(t, 145)
	assert.ErrorIs(t, env.execute(env.owner, id), ErrInsufficientConfirmations)

	id2, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	assert.NoError(t, env.confirm(env.owner, id2))
	assert.NoError(t, env.confirm(env.wallet2, id2))
	tr := env.getTransfer(t, id2)
	assert.Equal(t, uint64(2), tr.Confirmations())
	assert.Equal(t, []agreement.Principal{env.owner, env.wallet2}, tr.ConfirmedBy)

	err = env.execute(env.owner, id2)
	assert.ErrorIs(t, err, ErrLockedPeriod)
	code, _ := CodeOf(err)
	assert.Equal(t, Code(105), code)

	env.mine(t, 145)
	env.drainEvents()
	assert.NoError(t, env.execute(env.owner, id2))

	tr = env.getTransfer(t, id2)
	assert.Equal(t, agreement.TransferStatusCompleted, tr.Status)
	assert.Equal(t, uint64(500000), tr.Fee)
	assert.Equal(t, env.host.Height(), tr.ClosedAt)

	assert.Equal(t, uint64(500000), env.balance(t, NativeToken, env.owner))
	assert.Equal(t, stxTransferUnit-500000, env.balance(t, NativeToken, DefaultCustodian))
	assert.Equal(t, stxTransferUnit, env.balance(t, NativeToken, DefaultEscrow))

	evs := env.drainEvents()
	assert.Len(t, evs, 1)
	assert.Equal(t, &agreement.TransferExecutedEvent{
		Id:        id2,
		Recipient: btcRecipient,
		Token:     NativeToken,
		Released:  stxTransferUnit - 500000,
		Fee:       500000,
		Height:    env.host.Height(),
	}, evs[0])

	// terminal
	assert.ErrorIs(t, env.execute(env.owner, id2), ErrInvalidState)
	assert.ErrorIs(t, env.confirm(env.owner, id2), ErrInvalidState)
	assert.ErrorIs(t, env.cancel(env.wallet1, id2), ErrInvalidState)
}

func TestExecuteExactlyAtUnlock(t *testing.T) {
	env, close := newTestEnv(t, func(cfg *Config) {
		cfg.LockPeriod = 10
	})
	defer close()

	assert.NoError(t, env.addValidator(env.owner, env.wallet2, 1))
	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	unlockAt := env.getTransfer(t, id).UnlockAt

	assert.NoError(t, env.confirm(env.owner, id))
	assert.NoError(t, env.confirm(env.wallet2, id))

	// the next call is mined at Height()+1
	env.mine(t, unlockAt-2-env.host.Height())
	assert.ErrorIs(t, env.execute(env.owner, id), ErrLockedPeriod)
	assert.Equal(t, unlockAt-1, env.host.Height())
	assert.NoError(t, env.execute(env.wallet3, id))
	assert.Equal(t, unlockAt, env.host.Height())
}

func TestRemovedValidatorDoesNotCount(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	assert.NoError(t, env.addValidator(env.owner, env.wallet2, 1))
	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	assert.NoError(t, env.confirm(env.owner, id))
	assert.NoError(t, env.confirm(env.wallet2, id))

	_, err = env.call(env.owner, func(s *Session) (interface{}, error) {
		return s.RemoveValidator(env.wallet2)
	})
	assert.NoError(t, err)

	env.mine(t, DefaultLockPeriod)
	assert.ErrorIs(t, env.execute(env.owner, id), ErrInsufficientConfirmations)

	// reactivating restores the confirmation
	assert.NoError(t, env.addValidator(env.owner, env.wallet2, 1))
	assert.NoError(t, env.execute(env.owner, id))
}

func TestValidators(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	assert.ErrorIs(t, env.addValidator(env.wallet1, env.wallet2, 1), ErrUnauthorized)
	assert.ErrorIs(t, env.addValidator(env.owner, env.wallet2, 0), ErrInvalidAmount)
	assert.ErrorIs(t, env.addValidator(env.owner, "", 1), ErrInvalidRecipient)

	assert.NoError(t, env.addValidator(env.owner, env.wallet2, 1))
	assert.NoError(t, env.addValidator(env.owner, env.wallet2, 3))

	v := env.view()
	assert.Equal(t, uint64(3), v.GetValidatorWeight(env.wallet2))
	total, err := v.TotalWeight()
	assert.NoError(t, err)
	assert.Equal(t, uint64(4), total)

	remove := func(sender, p agreement.Principal) error {
		_, err := env.call(sender, func(s *Session) (interface{}, error) {
			return s.RemoveValidator(p)
		})
		return err
	}
	assert.ErrorIs(t, remove(env.wallet1, env.wallet2), ErrUnauthorized)
	assert.ErrorIs(t, remove(env.owner, env.wallet3), ErrNotFound)
	assert.NoError(t, remove(env.owner, env.wallet2))

	assert.False(t, v.IsValidator(env.wallet2))
	assert.Equal(t, uint64(0), v.GetValidatorWeight(env.wallet2))
	assert.Equal(t, uint64(0), v.GetValidatorWeight(env.wallet3))
	total, err = v.TotalWeight()
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), total)

	stored, err := v.GetValidator(env.wallet2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), stored.Weight)
	assert.False(t, stored.Active)

	_, err = v.GetValidator(env.wallet3)
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := v.GetActiveValidators()
	assert.NoError(t, err)
	assert.Len(t, active, 1)

	// removed validators cannot confirm
	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	assert.ErrorIs(t, env.confirm(env.wallet2, id), ErrUnauthorized)
}

func TestCancelTransfer(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	amount := uint64(10000000)
	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, amount)
	assert.NoError(t, err)

	assert.ErrorIs(t, env.cancel(env.wallet2, id), ErrUnauthorized)
	assert.ErrorIs(t, env.cancel(env.wallet1, 5), ErrNotFound)

	env.drainEvents()
	assert.NoError(t, env.cancel(env.wallet1, id))

	tr := env.getTransfer(t, id)
	assert.Equal(t, agreement.TransferStatusCancelled, tr.Status)
	assert.Equal(t, uint64(50000), tr.Fee)

	assert.Equal(t, initialStx-50000, env.balance(t, NativeToken, env.wallet1))
	assert.Equal(t, uint64(50000), env.balance(t, NativeToken, env.owner))
	assert.Equal(t, uint64(0), env.balance(t, NativeToken, DefaultEscrow))

	evs := env.drainEvents()
	assert.Len(t, evs, 1)
	assert.Equal(t, &agreement.TransferCancelledEvent{
		Id:       id,
		Sender:   env.wallet1,
		Refunded: amount - 50000,
		Fee:      50000,
		Height:   env.host.Height(),
	}, evs[0])

	assert.ErrorIs(t, env.cancel(env.wallet1, id), ErrInvalidState)
	assert.ErrorIs(t, env.execute(env.owner, id), ErrInvalidState)
}

func TestCancelUsesCurrentFeeRate(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	treasury := common.RandPrincipal()
	_, err := env.call(env.owner, func(s *Session) (interface{}, error) {
		return s.SetTreasury(treasury)
	})
	assert.NoError(t, err)

	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, 10000000)
	assert.NoError(t, err)

	_, err = env.call(env.owner, func(s *Session) (interface{}, error) {
		return s.SetFeeRate(1000)
	})
	assert.NoError(t, err)

	assert.NoError(t, env.cancel(env.wallet1, id))
	assert.Equal(t, uint64(1000000), env.getTransfer(t, id).Fee)
	assert.Equal(t, uint64(1000000), env.balance(t, NativeToken, treasury))
	assert.Equal(t, initialStx-1000000, env.balance(t, NativeToken, env.wallet1))

	// zero fee rate refunds everything
	_, err = env.call(env.owner, func(s *Session) (interface{}, error) {
		return s.SetFeeRate(0)
	})
	assert.NoError(t, err)
	id, err = env.initiate(env.wallet1, btcRecipient, NativeToken, 7)
	assert.NoError(t, err)
	assert.NoError(t, env.cancel(env.wallet1, id))
	assert.Equal(t, uint64(0), env.getTransfer(t, id).Fee)
	assert.Equal(t, initialStx-1000000, env.balance(t, NativeToken, env.wallet1))
}

func TestFeeRounding(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	// 199 * 50 / 10000 rounds down to 0
	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, 199)
	assert.NoError(t, err)
	assert.NoError(t, env.cancel(env.wallet1, id))
	assert.Equal(t, uint64(0), env.getTransfer(t, id).Fee)

	id, err = env.initiate(env.wallet1, btcRecipient, NativeToken, 399)
	assert.NoError(t, err)
	assert.NoError(t, env.cancel(env.wallet1, id))
	assert.Equal(t, uint64(1), env.getTransfer(t, id).Fee)
}

func TestGovernance(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	setFee := func(sender agreement.Principal, bps uint64) error {
		_, err := env.call(sender, func(s *Session) (interface{}, error) {
			return s.SetFeeRate(bps)
		})
		return err
	}

	_, err := env.call(env.wallet1, func(s *Session) (interface{}, error) {
		return s.SetTreasury(env.wallet1)
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.ErrorIs(t, setFee(env.wallet1, 10), ErrUnauthorized)
	assert.NoError(t, setFee(env.owner, 1000))
	assert.ErrorIs(t, setFee(env.owner, 1001), ErrInvalidAmount)
	assert.NoError(t, setFee(env.owner, 0))

	g, err := env.view().GetGovernance()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), g.FeeRateBps)

	_, err = env.call(env.wallet1, func(s *Session) (interface{}, error) {
		return s.TransferOwnership(env.wallet1)
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.call(env.owner, func(s *Session) (interface{}, error) {
		return s.TransferOwnership("")
	})
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = env.call(env.owner, func(s *Session) (interface{}, error) {
		return s.TransferOwnership(env.wallet1)
	})
	assert.NoError(t, err)

	// old owner lost authority, new owner has it
	assert.ErrorIs(t, setFee(env.owner, 20), ErrUnauthorized)
	assert.NoError(t, setFee(env.wallet1, 20))

	g, err = env.view().GetGovernance()
	assert.NoError(t, err)
	assert.Equal(t, env.wallet1, g.Owner)
	assert.Equal(t, env.owner, g.Treasury)
	assert.Equal(t, uint64(20), g.FeeRateBps)
}

func TestOwnershipTransferWithinOneCall(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	_, err := env.call(env.owner, func(s *Session) (interface{}, error) {
		if _, err := s.TransferOwnership(env.wallet1); err != nil {
			return nil, err
		}
		return s.SetFeeRate(100)
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// the whole call was rolled back
	g, err := env.view().GetGovernance()
	assert.NoError(t, err)
	assert.Equal(t, env.owner, g.Owner)
	assert.Equal(t, DefaultGenesisFeeRateBps, g.FeeRateBps)
}

func TestEmergencyHalt(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	toggle := func(sender agreement.Principal) (interface{}, error) {
		return env.call(sender, func(s *Session) (interface{}, error) {
			return s.EmergencyToggle()
		})
	}

	assert.NoError(t, env.addValidator(env.owner, env.wallet2, 1))
	pending, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	refundable, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)

	_, err = toggle(env.wallet1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	halted, err := toggle(env.owner)
	assert.NoError(t, err)
	assert.Equal(t, true, halted)

	_, err = env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.ErrorIs(t, err, ErrOperationFailed)
	code, _ := CodeOf(err)
	assert.Equal(t, Code(107), code)

	// in-flight transfers are unaffected
	assert.NoError(t, env.confirm(env.owner, pending))
	assert.NoError(t, env.confirm(env.wallet2, pending))
	env.mine(t, DefaultLockPeriod)
	assert.NoError(t, env.execute(env.owner, pending))

	assert.NoError(t, env.cancel(env.wallet1, refundable))
	tr := env.getTransfer(t, refundable)
	assert.Equal(t, agreement.TransferStatusCancelled, tr.Status)
	assert.Equal(t, uint64(500000), tr.Fee)
	assert.Equal(t, initialStx-stxTransferUnit-500000, env.balance(t, NativeToken, env.wallet1))
	assert.Equal(t, uint64(1000000), env.balance(t, NativeToken, env.owner))
	assert.Equal(t, uint64(0), env.balance(t, NativeToken, DefaultEscrow))

	halted, err = toggle(env.owner)
	assert.NoError(t, err)
	assert.Equal(t, false, halted)

	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), id)
}

func TestBridgeAccountsCannotInitiate(t *testing.T) {
	env, close := newTestEnv(t, func(cfg *Config) {
		cfg.Allocations = append(cfg.Allocations, Allocation{Account: DefaultCustodian, Amount: stxTransferUnit})
	})
	defer close()

	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	assert.Equal(t, stxTransferUnit, env.balance(t, NativeToken, DefaultEscrow))

	// escrow to escrow would record a transfer without moving funds
	_, err = env.initiate(DefaultEscrow, btcRecipient, NativeToken, stxTransferUnit)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.initiate(DefaultCustodian, btcRecipient, NativeToken, stxTransferUnit)
	assert.ErrorIs(t, err, ErrUnauthorized)

	count, err := env.view().TransferCount()
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, stxTransferUnit, env.balance(t, NativeToken, DefaultEscrow))
	assert.Equal(t, stxTransferUnit, env.balance(t, NativeToken, DefaultCustodian))

	// the sender's refund is still fully backed
	assert.NoError(t, env.cancel(env.wallet1, id))
	assert.Equal(t, initialStx-500000, env.balance(t, NativeToken, env.wallet1))
	assert.Equal(t, uint64(0), env.balance(t, NativeToken, DefaultEscrow))
}

func TestStorageFailureIsNotCoded(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	require.NoError(t, err)

	callWithout := func(sender agreement.Principal, table string, fn func(s *Session) (interface{}, error)) error {
		_, err := env.host.Call(context.Background(), sender, func(cc *chain.CallContext) (interface{}, error) {
			if _, err := cc.Tx().Exec("DROP TABLE " + table); err != nil {
				return nil, err
			}
			return fn(env.bridge.Session(cc))
		})
		return err
	}

	err = callWithout(env.wallet1, "tokens", func(s *Session) (interface{}, error) {
		return s.InitiateTransfer(btcRecipient, NativeToken, stxTransferUnit)
	})
	assert.Error(t, err)
	_, coded := CodeOf(err)
	assert.False(t, coded)

	err = callWithout(env.owner, "validators", func(s *Session) (interface{}, error) {
		return s.ConfirmTransfer(id)
	})
	assert.Error(t, err)
	_, coded = CodeOf(err)
	assert.False(t, coded)

	// both calls were rolled back
	assert.True(t, env.view().IsSupportedToken(NativeToken))
	assert.NoError(t, env.confirm(env.owner, id))
}

func TestIdsNeverReused(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	for i := uint64(0); i < 3; i++ {
		id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
		assert.NoError(t, err)
		assert.Equal(t, i, id)
		assert.NoError(t, env.cancel(env.wallet1, id))
	}

	// failed initiations do not consume ids
	_, err := env.initiate(env.wallet1, btcRecipient, NativeToken, 0)
	assert.Error(t, err)

	id, err := env.initiate(env.wallet2, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), id)

	v := env.view()
	count, err := v.TransferCount()
	assert.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	cancelled, err := v.ListTransfersByStatus(agreement.TransferStatusCancelled)
	assert.NoError(t, err)
	assert.Len(t, cancelled, 3)
	pendings, err := v.ListTransfersByStatus(agreement.TransferStatusPending)
	assert.NoError(t, err)
	assert.Len(t, pendings, 1)
	_, err = v.ListTransfersByStatus("unknown")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFailedCallLeavesNoTrace(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	env.drainEvents()
	_, err := env.call(env.wallet1, func(s *Session) (interface{}, error) {
		if _, err := s.InitiateTransfer(btcRecipient, NativeToken, stxTransferUnit); err != nil {
			return nil, err
		}
		return s.InitiateTransfer(btcRecipient, "usda", 1)
	})
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.Equal(t, initialStx, env.balance(t, NativeToken, env.wallet1))
	count, err := env.view().TransferCount()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), count)
	assert.Empty(t, env.drainEvents())
}

func TestNonNativeToken(t *testing.T) {
	env, close := newTestEnv(t)
	defer close()

	_, err := env.call(env.owner, func(s *Session) (interface{}, error) {
		return s.RegisterToken("usda")
	})
	assert.NoError(t, err)

	id, err := env.initiate(env.wallet1, btcRecipient, "usda", initialUsda)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), env.balance(t, "usda", env.wallet1))
	assert.Equal(t, initialUsda, env.balance(t, "usda", DefaultEscrow))
	assert.Equal(t, uint64(0), env.balance(t, NativeToken, DefaultEscrow))

	assert.NoError(t, env.cancel(env.wallet1, id))
	assert.Equal(t, uint64(995), env.balance(t, "usda", env.wallet1))
	assert.Equal(t, uint64(5), env.balance(t, "usda", env.owner))
}

func TestBtcRecipientPolicy(t *testing.T) {
	policy, err := NewBtcRecipientPolicy("mainnet")
	require.NoError(t, err)

	env, close := newTestEnv(t, func(cfg *Config) {
		cfg.RecipientPolicy = policy
	})
	defer close()

	_, err = env.initiate(env.wallet1, "not-a-btc-address", NativeToken, stxTransferUnit)
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	_, err = env.initiate(env.wallet1, mainnetP2PKH, NativeToken, stxTransferUnit)
	assert.NoError(t, err)

	testnet, err := NewBtcRecipientPolicy("testnet")
	require.NoError(t, err)
	assert.False(t, testnet.Accept(mainnetP2PKH))

	_, err = NewBtcRecipientPolicy("signet")
	assert.Error(t, err)
}

func TestFixedQuorum(t *testing.T) {
	env, close := newTestEnv(t, func(cfg *Config) {
		cfg.Quorum = quorum.Fixed{Weight: 3}
	})
	defer close()

	assert.NoError(t, env.addValidator(env.owner, env.wallet2, 2))
	id, err := env.initiate(env.wallet1, btcRecipient, NativeToken, stxTransferUnit)
	assert.NoError(t, err)
	assert.NoError(t, env.confirm(env.wallet2, id))
	env.mine(t, DefaultLockPeriod)
	assert.ErrorIs(t, env.execute(env.owner, id), ErrInsufficientConfirmations)

	assert.NoError(t, env.confirm(env.owner, id))
	assert.NoError(t, env.execute(env.owner, id))
}
