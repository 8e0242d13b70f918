package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/TEENet-io/token-bridge/agreement"
)

var (
	ErrorAmountInvalid        = errors.New("amount invalid")
	ErrorSenderInvalid        = errors.New("sender invalid")
	ErrorRecipientInvalid     = errors.New("recipient invalid")
	ErrorTokenInvalid         = errors.New("token invalid")
	ErrorStatusInvalid        = errors.New("status invalid")
	ErrorRequireStatusPending = errors.New("require status == pending")
)

// Transfer is the persisted record of one bridge transfer.
type Transfer struct {
	Id          uint64
	Sender      agreement.Principal
	Recipient   string // foreign chain address, not interpreted
	Token       string
	Amount      uint64
	Fee         uint64 // charged on the terminal transition
	Status      agreement.TransferStatus
	ConfirmedBy []agreement.Principal // in confirmation order
	CreatedAt   uint64
	UnlockAt    uint64
	ClosedAt    uint64 // height of the terminal transition
}

// Confirmations is the number of distinct validators that confirmed.
func (t *Transfer) Confirmations() uint64 {
	return uint64(len(t.ConfirmedBy))
}

func (t *Transfer) HasConfirmed(validator agreement.Principal) bool {
	for _, v := range t.ConfirmedBy {
		if v == validator {
			return true
		}
	}
	return false
}

func (t *Transfer) IsPending() bool {
	return t.Status == agreement.TransferStatusPending
}

// Unlocked reports whether the lock period has passed at the given height.
func (t *Transfer) Unlocked(height uint64) bool {
	return height >= t.UnlockAt
}

func (t *Transfer) validate() error {
	if t.Amount == 0 {
		return ErrorAmountInvalid
	}
	if t.Sender == "" {
		return ErrorSenderInvalid
	}
	if t.Recipient == "" {
		return ErrorRecipientInvalid
	}
	if t.Token == "" {
		return ErrorTokenInvalid
	}
	if !t.Status.Valid() {
		return ErrorStatusInvalid
	}
	return nil
}

func (t *Transfer) Clone() *Transfer {
	clone := *t
	if t.ConfirmedBy != nil {
		clone.ConfirmedBy = append([]agreement.Principal{}, t.ConfirmedBy...)
	}
	return &clone
}

func (t *Transfer) String() string {
	return fmt.Sprintf("Transfer { Id: %d, Sender: %s, Recipient: %s, Token: %s, Amount: %d, Fee: %d, Status: %s, Confirmations: %d, CreatedAt: %d, UnlockAt: %d, ClosedAt: %d }",
		t.Id, t.Sender, t.Recipient, t.Token, t.Amount, t.Fee, t.Status, t.Confirmations(), t.CreatedAt, t.UnlockAt, t.ClosedAt)
}

// JSONTransfer is the read-only record served to clients. Numbers are
// rendered as decimal strings.
type JSONTransfer struct {
	Id            string   `json:"id"`
	Sender        string   `json:"sender"`
	Recipient     string   `json:"recipient"`
	TokenType     string   `json:"token-type"`
	Amount        string   `json:"amount"`
	Fee           string   `json:"fee"`
	Status        string   `json:"status"`
	Confirmations string   `json:"confirmations"`
	ConfirmedBy   []string `json:"confirmed-by"`
	CreatedAt     string   `json:"created-at"`
	UnlockAt      string   `json:"unlock-at"`
	ClosedAt      string   `json:"closed-at"`
}

func (t *Transfer) MarshalJSON() ([]byte, error) {
	confirmedBy := []string{}
	for _, v := range t.ConfirmedBy {
		confirmedBy = append(confirmedBy, v.String())
	}

	return json.Marshal(&JSONTransfer{
		Id:            strconv.FormatUint(t.Id, 10),
		Sender:        t.Sender.String(),
		Recipient:     t.Recipient,
		TokenType:     t.Token,
		Amount:        strconv.FormatUint(t.Amount, 10),
		Fee:           strconv.FormatUint(t.Fee, 10),
		Status:        string(t.Status),
		Confirmations: strconv.FormatUint(t.Confirmations(), 10),
		ConfirmedBy:   confirmedBy,
		CreatedAt:     strconv.FormatUint(t.CreatedAt, 10),
		UnlockAt:      strconv.FormatUint(t.UnlockAt, 10),
		ClosedAt:      strconv.FormatUint(t.ClosedAt, 10),
	})
}

func (t *Transfer) UnmarshalJSON(data []byte) error {
	var j JSONTransfer
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	var err error
	parse := func(s string) uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = strconv.ParseUint(s, 10, 64)
		return v
	}

	t.Id = parse(j.Id)
	t.Sender = agreement.Principal(j.Sender)
	t.Recipient = j.Recipient
	t.Token = j.TokenType
	t.Amount = parse(j.Amount)
	t.Fee = parse(j.Fee)
	t.Status = agreement.TransferStatus(j.Status)
	t.CreatedAt = parse(j.CreatedAt)
	t.UnlockAt = parse(j.UnlockAt)
	t.ClosedAt = parse(j.ClosedAt)
	t.ConfirmedBy = nil
	for _, v := range j.ConfirmedBy {
		t.ConfirmedBy = append(t.ConfirmedBy, agreement.Principal(v))
	}
	confirmations := parse(j.Confirmations)
	if err != nil {
		return err
	}

	if uint64(len(t.ConfirmedBy)) != confirmations {
		return errors.New("confirmations unmatched with confirmed-by")
	}
	return nil
}
