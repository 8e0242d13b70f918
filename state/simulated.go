package state

import (
	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/common"
)

// RandTransfer returns a pending transfer with random principals.
func RandTransfer(id uint64) *Transfer {
	return &Transfer{
		Id:        id,
		Sender:    common.RandPrincipal(),
		Recipient: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
		Token:     "stx",
		Amount:    100000000,
		Status:    agreement.TransferStatusPending,
		CreatedAt: 10,
		UnlockAt:  154,
	}
}
