package common

import (
	"strings"

	"github.com/TEENet-io/token-bridge/agreement"
)

// RandPrincipal returns a random stacks-like principal, e.g. ST1A2B...
// Only used by tests and the simulated host.
func RandPrincipal() agreement.Principal {
	return agreement.Principal("ST" + strings.ToUpper(ByteSliceToPureHexStr(RandBytes(20))))
}
