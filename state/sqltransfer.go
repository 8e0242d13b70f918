package state

import (
	"github.com/TEENet-io/token-bridge/agreement"
	"github.com/TEENet-io/token-bridge/common"
)

type sqlTransfer struct {
	Id        uint64
	Sender    string
	Recipient string
	Token     string
	Amount    uint64
	Fee       uint64
	Status    string
	CreatedAt uint64
	UnlockAt  uint64
	ClosedAt  uint64
}

// encode converts a Transfer into values that can be stored in sql db.
// Amounts above MaxStorableAmount are rejected since the driver cannot
// bind them.
func encode(t *Transfer) (*sqlTransfer, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	if t.Amount > common.MaxStorableAmount || t.Fee > t.Amount {
		return nil, ErrorAmountInvalid
	}

	return &sqlTransfer{
		Id:        t.Id,
		Sender:    t.Sender.String(),
		Recipient: t.Recipient,
		Token:     t.Token,
		Amount:    t.Amount,
		Fee:       t.Fee,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UnlockAt:  t.UnlockAt,
		ClosedAt:  t.ClosedAt,
	}, nil
}

// decode does not fill ConfirmedBy, which lives in its own table.
func (s *sqlTransfer) decode() *Transfer {
	return &Transfer{
		Id:        s.Id,
		Sender:    agreement.Principal(s.Sender),
		Recipient: s.Recipient,
		Token:     s.Token,
		Amount:    s.Amount,
		Fee:       s.Fee,
		Status:    agreement.TransferStatus(s.Status),
		CreatedAt: s.CreatedAt,
		UnlockAt:  s.UnlockAt,
		ClosedAt:  s.ClosedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *sqlTransfer) scan(row rowScanner) error {
	return row.Scan(
		&s.Id,
		&s.Sender,
		&s.Recipient,
		&s.Token,
		&s.Amount,
		&s.Fee,
		&s.Status,
		&s.CreatedAt,
		&s.UnlockAt,
		&s.ClosedAt,
	)
}
