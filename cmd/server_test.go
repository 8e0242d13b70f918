package cmd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/bridge"
	"github.com/TEENet-io/token-bridge/common"
	"github.com/TEENet-io/token-bridge/relaydb"
)

const btcRecipient = "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"

// The whole life cycle: initiate, confirm twice, wait out the lock,
// execute, and see the relayer settle the payout.
func TestBridgeServerLifeCycle(t *testing.T) {
	owner := common.RandPrincipal()
	validator := common.RandPrincipal()
	user := common.RandPrincipal()

	bsc := &BridgeServerConfig{
		DbFilePath:     ":memory:",
		Owner:          owner.String(),
		LockPeriod:     3,
		FeeRateBps:     50,
		QuorumPolicy:   "majority",
		Allocations:    []bridge.Allocation{{Account: user, Amount: 1000000}},
		RelayFrequency: 100 * time.Millisecond,
		BlockTime:      100 * time.Millisecond,
		LogLevel:       "info",
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	bs, err := NewBridgeServer(bsc, ctx, &wg)
	require.NoError(t, err)
	require.Nil(t, bs.MyReporter)
	require.Eventually(t, bs.MyHost.Running, 5*time.Second, 10*time.Millisecond)

	receipt := bs.Submit(owner, func(s *bridge.Session) (interface{}, error) {
		return s.AddValidator(validator, 1)
	})
	require.NoError(t, receipt.Err)

	receipt = bs.Submit(user, func(s *bridge.Session) (interface{}, error) {
		return s.InitiateTransfer(btcRecipient, bridge.NativeToken, 10000)
	})
	require.NoError(t, receipt.Err)
	id := receipt.Result.(uint64)
	assert.Equal(t, uint64(0), id)

	for _, v := range []agreement.Principal{owner, validator} {
		receipt = bs.Submit(v, func(s *bridge.Session) (interface{}, error) {
			return s.ConfirmTransfer(id)
		})
		require.NoError(t, receipt.Err)
	}

	// keep trying until the lock has passed
	require.Eventually(t, func() bool {
		receipt := bs.Submit(user, func(s *bridge.Session) (interface{}, error) {
			return s.ExecuteTransfer(id)
		})
		if receipt.Err != nil {
			assert.ErrorIs(t, receipt.Err, bridge.ErrLockedPeriod)
			return false
		}
		return true
	}, 10*time.Second, 10*time.Millisecond)

	tr, err := bs.MyBridge.View().GetTransfer(id)
	require.NoError(t, err)
	assert.Equal(t, agreement.TransferStatusCompleted, tr.Status)
	assert.Equal(t, uint64(50), tr.Fee)

	require.Eventually(t, func() bool {
		relay, err := bs.MyRelayDb.GetRelay(id)
		return err == nil && relay != nil && relay.Status == relaydb.Settled
	}, 10*time.Second, 50*time.Millisecond)

	relay, err := bs.MyRelayDb.GetRelay(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(9950), relay.Amount)
	assert.Equal(t, btcRecipient, relay.Recipient)

	custodian, err := bs.MyLedger.Balance(bridge.NativeToken, bridge.DefaultCustodian)
	require.NoError(t, err)
	assert.Equal(t, uint64(9950), custodian)
}
