package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/TEENet-io/token-bridge/bridge"
)

// Config keys, read from the environment or the config file.
const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"

	KEY_DB_FILE_PATH          = "DB_FILE_PATH"
	KEY_OWNER                 = "OWNER"
	KEY_ESCROW                = "ESCROW"
	KEY_CUSTODIAN             = "CUSTODIAN"
	KEY_LOCK_PERIOD           = "LOCK_PERIOD"
	KEY_FEE_RATE_BPS          = "FEE_RATE_BPS"
	KEY_QUORUM_POLICY         = "QUORUM_POLICY"
	KEY_QUORUM_WEIGHT         = "QUORUM_WEIGHT"
	KEY_RECIPIENT_BTC_NETWORK = "RECIPIENT_BTC_NETWORK"
	KEY_ALLOCATIONS           = "ALLOCATIONS"
	KEY_HTTP_IP               = "HTTP_IP"
	KEY_HTTP_PORT             = "HTTP_PORT"
	KEY_RELAY_FREQUENCY       = "RELAY_FREQUENCY"
	KEY_RELAY_MAX_ATTEMPTS    = "RELAY_MAX_ATTEMPTS"
	KEY_BLOCK_TIME            = "BLOCK_TIME"
	KEY_LOG_LEVEL             = "LOG_LEVEL"
)

// SetDefaults registers the default of every optional key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KEY_DB_FILE_PATH, "bridge.db")
	v.SetDefault(KEY_ESCROW, string(bridge.DefaultEscrow))
	v.SetDefault(KEY_CUSTODIAN, string(bridge.DefaultCustodian))
	v.SetDefault(KEY_LOCK_PERIOD, bridge.DefaultLockPeriod)
	v.SetDefault(KEY_FEE_RATE_BPS, bridge.DefaultGenesisFeeRateBps)
	v.SetDefault(KEY_QUORUM_POLICY, "majority")
	v.SetDefault(KEY_QUORUM_WEIGHT, 0)
	v.SetDefault(KEY_RECIPIENT_BTC_NETWORK, "")
	v.SetDefault(KEY_HTTP_IP, "0.0.0.0")
	v.SetDefault(KEY_HTTP_PORT, "8080")
	v.SetDefault(KEY_RELAY_FREQUENCY, "5s")
	v.SetDefault(KEY_RELAY_MAX_ATTEMPTS, 0)
	v.SetDefault(KEY_BLOCK_TIME, "1s")
	v.SetDefault(KEY_LOG_LEVEL, "info")
}

// PrepareBridgeServerConfig reads configuration variables and returns a
// BridgeServerConfig.
func PrepareBridgeServerConfig(v *viper.Viper) (*BridgeServerConfig, error) {
	owner := v.GetString(KEY_OWNER)
	if owner == "" {
		return nil, fmt.Errorf("%s must be set", KEY_OWNER)
	}

	var allocations []bridge.Allocation
	if v.IsSet(KEY_ALLOCATIONS) {
		if err := v.UnmarshalKey(KEY_ALLOCATIONS, &allocations); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", KEY_ALLOCATIONS, err)
		}
	}

	relayFrequency, err := parseDuration(v, KEY_RELAY_FREQUENCY)
	if err != nil {
		return nil, err
	}
	blockTime, err := parseDuration(v, KEY_BLOCK_TIME)
	if err != nil {
		return nil, err
	}

	return &BridgeServerConfig{
		DbFilePath:          v.GetString(KEY_DB_FILE_PATH),
		Owner:               owner,
		Escrow:              v.GetString(KEY_ESCROW),
		Custodian:           v.GetString(KEY_CUSTODIAN),
		LockPeriod:          v.GetUint64(KEY_LOCK_PERIOD),
		FeeRateBps:          v.GetUint64(KEY_FEE_RATE_BPS),
		QuorumPolicy:        v.GetString(KEY_QUORUM_POLICY),
		QuorumWeight:        v.GetUint64(KEY_QUORUM_WEIGHT),
		RecipientBtcNetwork: v.GetString(KEY_RECIPIENT_BTC_NETWORK),
		Allocations:         allocations,
		HttpIp:              v.GetString(KEY_HTTP_IP),
		HttpPort:            v.GetString(KEY_HTTP_PORT),
		RelayFrequency:      relayFrequency,
		RelayMaxAttempts:    v.GetUint64(KEY_RELAY_MAX_ATTEMPTS),
		BlockTime:           blockTime,
		LogLevel:            v.GetString(KEY_LOG_LEVEL),
	}, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return d, nil
}
