// This is a http type of reporter.
// It fetches data from the bridge state, the account ledger and the relay db
// and publishes on the http routes.

package reporter

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/bridge"
	"github.com/TEENet-io/token-bridge/ledger"
	"github.com/TEENet-io/token-bridge/relaydb"
	"github.com/TEENet-io/token-bridge/state"
)

const (
	ROUTE_HELLO      = "/hello"
	ROUTE_TRANSFER   = "/transfer"
	ROUTE_TRANSFERS  = "/transfers"
	ROUTE_VALIDATOR  = "/validator"
	ROUTE_TOKEN      = "/token"
	ROUTE_GOVERNANCE = "/governance"
	ROUTE_RELAY      = "/relay"
	ROUTE_BALANCES   = "/balances"
)

// BridgeReader is the read-only side of the bridge.
type BridgeReader interface {
	GetTransfer(id uint64) (*state.Transfer, error)
	ListTransfersByStatus(status agreement.TransferStatus) ([]*state.Transfer, error)
	TransferCount() (uint64, error)
	GetValidator(principal agreement.Principal) (*state.Validator, error)
	GetValidatorWeight(principal agreement.Principal) uint64
	TotalWeight() (uint64, error)
	IsSupportedToken(symbol string) bool
	GetGovernance() (*state.Governance, error)
}

// ChainReader reports the height of the last mined block and whether
// blocks are being produced.
type ChainReader interface {
	Height() uint64
	Running() bool
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	bridge  BridgeReader
	ledger  ledger.Ledger
	relaydb relaydb.RelayDB // this is an interface
	chain   ChainReader
}

func NewHttpReporter(serverIP string, serverPort string, br BridgeReader, l ledger.Ledger, rdb relaydb.RelayDB, chain ChainReader) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		bridge:     br,
		ledger:     l,
		relaydb:    rdb,
		chain:      chain,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Define routes & handlers
	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_TRANSFER, h.Transfer)
	router.GET(ROUTE_TRANSFERS, h.Transfers)
	router.GET(ROUTE_VALIDATOR, h.Validator)
	router.GET(ROUTE_TOKEN, h.Token)
	router.GET(ROUTE_GOVERNANCE, h.Governance)
	router.GET(ROUTE_RELAY, h.Relay)
	router.GET(ROUTE_BALANCES, h.Balances)

	return router
}

// Hook up router & ip:port, serve until ctx is cancelled.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.serverIP + ":" + h.serverPort,
		Handler: h.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithField("err", err).Error("failed to shutdown http reporter")
		}
		return ctx.Err()
	}
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

// respondError maps coded bridge errors to client errors, anything else is
// an internal error.
func respondError(c *gin.Context, err error) {
	code, ok := bridge.CodeOf(err)
	switch {
	case ok && code == bridge.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": code})
	case ok:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": code})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func queryUint(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an unsigned integer"})
		return 0, false
	}
	return v, true
}

func (h *HttpReporter) Transfer(c *gin.Context) {
	id, ok := queryUint(c, "id")
	if !ok {
		return
	}

	t, err := h.bridge.GetTransfer(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *HttpReporter) Transfers(c *gin.Context) {
	status := agreement.TransferStatus(c.DefaultQuery("status", string(agreement.TransferStatusPending)))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of pending, completed, cancelled"})
		return
	}

	ts, err := h.bridge.ListTransfersByStatus(status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ts})
}

func (h *HttpReporter) Validator(c *gin.Context) {
	principal := agreement.Principal(c.Query("principal"))
	if principal == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal must be provided"})
		return
	}

	v, err := h.bridge.GetValidator(principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":             v,
		"effective-weight": h.bridge.GetValidatorWeight(principal),
	})
}

func (h *HttpReporter) Token(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol must be provided"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": &state.TokenConfig{
		Symbol:    symbol,
		Supported: h.bridge.IsSupportedToken(symbol),
	}})
}

func (h *HttpReporter) Governance(c *gin.Context) {
	g, err := h.bridge.GetGovernance()
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := h.bridge.TotalWeight()
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := h.bridge.TransferCount()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":           g,
		"total-weight":   total,
		"transfer-count": count,
		"height":         h.chain.Height(),
		"producing":      h.chain.Running(),
	})
}

func (h *HttpReporter) Relay(c *gin.Context) {
	id, ok := queryUint(c, "id")
	if !ok {
		return
	}

	r, err := h.relaydb.GetRelay(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No relay found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": r})
}

func (h *HttpReporter) Balances(c *gin.Context) {
	account := agreement.Principal(c.Query("account"))
	if account == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account must be provided"})
		return
	}

	bs, err := h.ledger.Balances(account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bs})
}
