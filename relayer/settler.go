package relayer

import (
	"fmt"
	"sync"

	"github.com/TEENet-io/token-bridge/agreement"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"
)

// LogSettler stands in for a custodian that has no foreign chain
// connection: it only logs the payout and returns a deterministic reference.
type LogSettler struct {
	mu      sync.Mutex
	settled map[uint64]string
}

var _ agreement.Settler = (*LogSettler)(nil)

func NewLogSettler() *LogSettler {
	return &LogSettler{settled: make(map[uint64]string)}
}

func (s *LogSettler) Settle(ev *agreement.TransferExecutedEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.settled[ev.Id]; ok {
		return ref, nil
	}

	ref := ethcrypto.Keccak256Hash([]byte(fmt.Sprintf("%d:%s:%s:%d", ev.Id, ev.Recipient, ev.Token, ev.Released))).Hex()
	s.settled[ev.Id] = ref

	logger.WithFields(logger.Fields{
		"id":        ev.Id,
		"recipient": ev.Recipient,
		"token":     ev.Token,
		"amount":    ev.Released,
		"ref":       ref,
	}).Info("transfer settled on foreign chain")
	return ref, nil
}
