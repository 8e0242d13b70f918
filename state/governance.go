package state

import (
	"fmt"

	"github.com/TEENet-io/token-bridge/agreement"
)

// Governance is the singleton holding owner-controlled settings.
type Governance struct {
	Owner         agreement.Principal `json:"owner"`
	Treasury      agreement.Principal `json:"treasury"`
	FeeRateBps    uint64              `json:"fee-rate-bps"`
	EmergencyHalt bool                `json:"emergency-halt"`
}

func (g *Governance) String() string {
	return fmt.Sprintf("Governance { Owner: %s, Treasury: %s, FeeRateBps: %d, EmergencyHalt: %v }",
		g.Owner, g.Treasury, g.FeeRateBps, g.EmergencyHalt)
}
