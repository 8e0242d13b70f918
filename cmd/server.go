// Server = host (block producer) + bridge stores + relayer + http reporter.
// All components are configured via environment variables or a config file.

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/bridge"
	"github.com/TEENet-io/token-bridge/chain"
	"github.com/TEENet-io/token-bridge/database"
	"github.com/TEENet-io/token-bridge/ledger"
	"github.com/TEENet-io/token-bridge/logconfig"
	"github.com/TEENet-io/token-bridge/quorum"
	"github.com/TEENet-io/token-bridge/relaydb"
	"github.com/TEENet-io/token-bridge/relayer"
	"github.com/TEENet-io/token-bridge/reporter"
	"github.com/TEENet-io/token-bridge/state"
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type BridgeServerConfig struct {
	// state side
	DbFilePath string // db file path, ":memory:" for a throwaway db

	// bridge side
	Owner               string              // genesis owner, treasury and first validator
	Escrow              string              // account holding pending funds
	Custodian           string              // account receiving released funds
	LockPeriod          uint64              // blocks between initiation and execution
	FeeRateBps          uint64              // genesis fee rate
	QuorumPolicy        string              // majority | fixed
	QuorumWeight        uint64              // floor (majority) or weight (fixed)
	RecipientBtcNetwork string              // "" accepts any recipient, else mainnet | testnet | regtest
	Allocations         []bridge.Allocation // genesis funding

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080, empty disables the reporter

	// background loops
	RelayFrequency   time.Duration
	RelayMaxAttempts uint64
	BlockTime        time.Duration

	LogLevel string
}

// BridgeServer holds the objects that consists of the bridge server.
type BridgeServer struct {
	DB         *sql.DB
	MyHost     *chain.Host
	MyStateDb  *state.StateDB
	MyLedger   *ledger.SQLiteLedger
	MyBridge   *bridge.Bridge
	MyRelayDb  *relaydb.SQLiteRelayDB
	MyRelayer  *relayer.Relayer
	MyReporter *reporter.HttpReporter
}

// Helper function. Build the bridge config out of the text config.
func newBridgeConfig(bsc *BridgeServerConfig) (*bridge.Config, error) {
	policy, err := quorum.ParsePolicy(bsc.QuorumPolicy, bsc.QuorumWeight)
	if err != nil {
		return nil, err
	}

	cfg := bridge.DefaultConfig(agreement.Principal(bsc.Owner))
	cfg.LockPeriod = bsc.LockPeriod
	cfg.GenesisFeeRateBps = bsc.FeeRateBps
	cfg.Quorum = policy
	cfg.Allocations = bsc.Allocations
	if bsc.Escrow != "" {
		cfg.Escrow = agreement.Principal(bsc.Escrow)
	}
	if bsc.Custodian != "" {
		cfg.Custodian = agreement.Principal(bsc.Custodian)
	}
	if bsc.RecipientBtcNetwork != "" {
		rp, err := bridge.NewBtcRecipientPolicy(bsc.RecipientBtcNetwork)
		if err != nil {
			return nil, err
		}
		cfg.RecipientPolicy = rp
	}
	return cfg, nil
}

// NewBridgeServer creates a new bridge server.
// ctx is used for parental context to cancel the operation of bridge server.
// wg is used to wait for all the goroutines inside the server (host, relayer, reporter) to finish.
func NewBridgeServer(bsc *BridgeServerConfig, ctx context.Context, wg *sync.WaitGroup) (*BridgeServer, error) {
	if err := logconfig.ConfigFromString(bsc.LogLevel); err != nil {
		return nil, err
	}

	bridgeCfg, err := newBridgeConfig(bsc)
	if err != nil {
		logger.Errorf("invalid bridge config: %v", err)
		return nil, err
	}

	// Create sql db, and related stores.
	sqldb, err := database.OpenSQLite(bsc.DbFilePath)
	if err != nil {
		logger.Errorf("failed to open db file: %v", err)
		return nil, err
	}

	myStateDb, err := state.NewStateDB(sqldb)
	if err != nil {
		logger.Errorf("failed to create state db: %v", err)
		return nil, err
	}
	myLedger, err := ledger.NewSQLiteLedger(sqldb)
	if err != nil {
		logger.Errorf("failed to create ledger: %v", err)
		return nil, err
	}
	myRelayDb, err := relaydb.NewSQLiteRelayDB(sqldb)
	if err != nil {
		logger.Errorf("failed to create relay db: %v", err)
		return nil, err
	}
	myHost, err := chain.NewHost(sqldb)
	if err != nil {
		logger.Errorf("failed to create host: %v", err)
		return nil, err
	}

	myBridge, err := bridge.New(bridgeCfg, myStateDb, myLedger)
	if err != nil {
		logger.Errorf("failed to create bridge: %v", err)
		return nil, err
	}

	// Genesis, only once per db.
	initialized, err := myStateDb.HasGovernance()
	if err != nil {
		return nil, err
	}
	if !initialized {
		if _, err := myHost.Call(ctx, bridgeCfg.Owner, func(cc *chain.CallContext) (interface{}, error) {
			return myBridge.Session(cc).Genesis()
		}); err != nil {
			logger.Errorf("failed to apply genesis: %v", err)
			return nil, err
		}
	} else {
		logger.WithField("height", myHost.Height()).Info("resuming bridge")
	}

	// Relayer observes executed transfers.
	myRelayer := relayer.New(
		&relayer.RelayerConfig{
			IntervalCheckTime: bsc.RelayFrequency,
			MaxAttempts:       bsc.RelayMaxAttempts,
		},
		myRelayDb,
		relayer.NewLogSettler(),
		myBridge.View(),
	)
	myHost.Publisher().RegisterExecutedObserver(myRelayer.ExecutedChannel())

	// Important: Turn on the loops!
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := myHost.Run(ctx, bsc.BlockTime); err != nil && err != context.Canceled {
			logger.Errorf("block production stopped: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := myRelayer.Loop(ctx); err != nil && err != context.Canceled {
			logger.Errorf("relayer stopped: %v", err)
		}
	}()

	// *** Setup a http server to report status ***
	var myReporter *reporter.HttpReporter
	if bsc.HttpPort != "" {
		myReporter = reporter.NewHttpReporter(
			bsc.HttpIp,
			bsc.HttpPort,
			myBridge.View(),
			myLedger,
			myRelayDb,
			myHost,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := myReporter.Run(ctx); err != nil && err != context.Canceled {
				logger.Errorf("http reporter stopped: %v", err)
			}
		}()
	}

	// Release the db once every loop is done.
	go func() {
		<-ctx.Done()
		wg.Wait()
		myRelayDb.Close()
		myLedger.Close()
		myStateDb.Close()
		sqldb.Close()
	}()

	return &BridgeServer{
		DB:         sqldb,
		MyHost:     myHost,
		MyStateDb:  myStateDb,
		MyLedger:   myLedger,
		MyBridge:   myBridge,
		MyRelayDb:  myRelayDb,
		MyRelayer:  myRelayer,
		MyReporter: myReporter,
	}, nil
}

// Submit queues a bridge call from sender for the next block and waits for
// its receipt.
func (bs *BridgeServer) Submit(sender agreement.Principal, fn func(s *bridge.Session) (interface{}, error)) *chain.Receipt {
	return <-bs.MyHost.Submit(chain.NewTx(sender, func(cc *chain.CallContext) (interface{}, error) {
		return fn(bs.MyBridge.Session(cc))
	}))
}

// Create, then start the bridge server and wait.
// It contains a prepared bridge server and context + waitgroup.
// Press Ctrl-C to kill the server.
func StartBridgeServerAndWait(bsc *BridgeServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Launch a new goroutine to handle the signal
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	_, err := NewBridgeServer(bsc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create bridge server: %v", err)
		return
	}

	// wait for all routines to finish
	wg.Wait()
}
