package bridge

import (
	"github.com/TEENet-io/token-bridge/common"
	"github.com/btcsuite/btcd/chaincfg"
)

// RecipientPolicy decides whether a foreign chain address is acceptable.
type RecipientPolicy interface {
	Accept(recipient string) bool
}

// BtcRecipientPolicy accepts addresses of the given bitcoin network only.
type BtcRecipientPolicy struct {
	Params *chaincfg.Params
}

func NewBtcRecipientPolicy(network string) (*BtcRecipientPolicy, error) {
	params, err := common.BtcNetParams(network)
	if err != nil {
		return nil, err
	}
	return &BtcRecipientPolicy{Params: params}, nil
}

func (p *BtcRecipientPolicy) Accept(recipient string) bool {
	return common.IsValidBtcAddress(recipient, p.Params)
}

func checkRecipient(policy RecipientPolicy, recipient string) error {
	if len(recipient) == 0 || len(recipient) > MaxRecipientLength {
		return fail(ErrInvalidRecipient, "recipient length %d", len(recipient))
	}
	if policy != nil && !policy.Accept(recipient) {
		return fail(ErrInvalidRecipient, "recipient %s rejected", recipient)
	}
	return nil
}
