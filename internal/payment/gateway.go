package payment

import "context"

// Status is a payment state as the gateway reports it. The gateway is the
// source of truth; this system only observes.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusCanceled  Status = "canceled"
)

// Metadata is attached to every charge at creation time and read back when
// the payment settles.
type Metadata struct {
	UserID   int64
	Tariff   string
	RefCount int
	Discount int
}

// Charge describes a payment to be created at the gateway.
type Charge struct {
	Amount      float64
	Currency    string
	Description string
	ReturnURL   string
	Metadata    Metadata
}

// CreatedPayment is the gateway's answer to a successful Create.
type CreatedPayment struct {
	ID              string
	ConfirmationURL string
}

// Gateway is a hosted payment provider: create a charge, then look it up by
// id until it reaches a terminal status.
type Gateway interface {
	Create(ctx context.Context, charge Charge) (*CreatedPayment, error)
	Find(ctx context.Context, paymentID string) (Status, *Metadata, error)
}
