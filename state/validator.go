package state

import (
	"fmt"

	"github.com/TEENet-io/token-bridge/agreement"
)

// Validator is a weighted confirmer of transfers.
type Validator struct {
	Principal agreement.Principal `json:"principal"`
	Weight    uint64              `json:"weight"`
	Active    bool                `json:"active"`
}

func (v *Validator) String() string {
	return fmt.Sprintf("Validator { Principal: %s, Weight: %d, Active: %v }", v.Principal, v.Weight, v.Active)
}

// TokenConfig marks a token symbol as bridgeable.
type TokenConfig struct {
	Symbol    string `json:"symbol"`
	Supported bool   `json:"supported"`
}
