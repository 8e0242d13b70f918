// Package quorum decides when the confirming validator weight of a transfer
// is enough to execute it.
package quorum

import (
	"fmt"
	"strings"
)

// Policy is the quorum rule applied by the transfer manager.
type Policy interface {
	// Threshold returns the minimum confirming weight given the total
	// weight of active validators.
	Threshold(totalActive uint64) uint64

	// Reached reports whether the confirming weight meets the threshold.
	Reached(confirming, totalActive uint64) bool

	String() string
}

// Fixed requires a fixed minimum confirming weight regardless of the size
// of the validator set.
type Fixed struct {
	Weight uint64
}

func (f Fixed) Threshold(uint64) uint64 {
	if f.Weight == 0 {
		return 1
	}
	return f.Weight
}

func (f Fixed) Reached(confirming, totalActive uint64) bool {
	return confirming >= f.Threshold(totalActive)
}

func (f Fixed) String() string {
	return fmt.Sprintf("fixed(%d)", f.Weight)
}

// Majority requires a strict majority of the total active weight and never
// less than Floor.
type Majority struct {
	Floor uint64
}

func (m Majority) Threshold(totalActive uint64) uint64 {
	t := totalActive/2 + 1
	if t < m.Floor {
		return m.Floor
	}
	return t
}

func (m Majority) Reached(confirming, totalActive uint64) bool {
	return confirming >= m.Threshold(totalActive)
}

func (m Majority) String() string {
	return fmt.Sprintf("majority(floor=%d)", m.Floor)
}

// DefaultPolicy never accepts a single unit-weight confirmation.
func DefaultPolicy() Policy {
	return Majority{Floor: 2}
}

// ParsePolicy builds a policy from its configured name. weight is the
// fixed weight for "fixed" and the floor for "majority"; 0 keeps the
// default floor.
func ParsePolicy(name string, weight uint64) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "majority":
		if weight == 0 {
			return DefaultPolicy(), nil
		}
		return Majority{Floor: weight}, nil
	case "fixed":
		if weight == 0 {
			return nil, fmt.Errorf("fixed quorum requires a weight >= 1")
		}
		return Fixed{Weight: weight}, nil
	default:
		return nil, fmt.Errorf("unknown quorum policy: %q", name)
	}
}
