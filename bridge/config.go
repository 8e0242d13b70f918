package bridge

import (
	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/quorum"
)

const (
	DefaultLockPeriod        = uint64(144)
	DefaultGenesisFeeRateBps = uint64(50)
	MaxFeeRateBps            = uint64(1000)
	FeeRateDenominator       = uint64(10000)
	NativeToken              = "stx"
	MaxRecipientLength       = 128
	MaxSymbolLength          = 32

	DefaultEscrow    = agreement.Principal("token-bridge.escrow")
	DefaultCustodian = agreement.Principal("token-bridge.custodian")
)

// Allocation funds an account at genesis.
type Allocation struct {
	Account agreement.Principal `mapstructure:"account"`
	Token   string              `mapstructure:"token"`
	Amount  uint64              `mapstructure:"amount"`
}

type Config struct {
	// Owner is the genesis owner, treasury and first validator.
	Owner agreement.Principal

	// Escrow holds the funds of pending transfers.
	Escrow agreement.Principal

	// Custodian receives the released amount of executed transfers and
	// pays out on the foreign chain.
	Custodian agreement.Principal

	// LockPeriod is the number of blocks between initiation and the
	// earliest execution.
	LockPeriod uint64

	GenesisFeeRateBps uint64

	Quorum quorum.Policy

	// RecipientPolicy optionally checks the foreign address format. nil
	// accepts any recipient of valid length.
	RecipientPolicy RecipientPolicy

	Allocations []Allocation
}

func DefaultConfig(owner agreement.Principal) *Config {
	return &Config{
		Owner:             owner,
		Escrow:            DefaultEscrow,
		Custodian:         DefaultCustodian,
		LockPeriod:        DefaultLockPeriod,
		GenesisFeeRateBps: DefaultGenesisFeeRateBps,
		Quorum:            quorum.DefaultPolicy(),
	}
}
