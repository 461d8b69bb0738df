package models

import "time"

// Sale is an immutable receipt of a card purchase. Amount is the seller's
// share, not the buyer's cost.
type Sale struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	BuyerID   string    `json:"buyer_id"`
	BuyerName string    `json:"buyer_name"`
	CardID    string    `json:"card_id"`
	CardTitle string    `json:"card_title"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// WithdrawalMethod is the closed set of payout destinations.
type WithdrawalMethod string

const (
	WithdrawalPix    WithdrawalMethod = "pix"
	WithdrawalPicpay WithdrawalMethod = "picpay"
	WithdrawalPaypal WithdrawalMethod = "paypal"
	WithdrawalStripe WithdrawalMethod = "stripe"
)

// Valid reports whether m is a known payout method.
func (m WithdrawalMethod) Valid() bool {
	switch m {
	case WithdrawalPix, WithdrawalPicpay, WithdrawalPaypal, WithdrawalStripe:
		return true
	}
	return false
}

// WithdrawalStatus values. Only an external payout process moves a request
// past "pending".
const (
	WithdrawalPending  = "pending"
	WithdrawalPaid     = "paid"
	WithdrawalRejected = "rejected"
)

// Withdrawal is a request against a wallet's earnings. Append-only once
// created; status is mutated only by the payout operator.
type Withdrawal struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	Amount            int              `json:"amount"`
	Method            WithdrawalMethod `json:"method"`
	TargetKey         string           `json:"target_key"`
	Status            string           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	EstimatedPayoutAt time.Time        `json:"estimated_payout_at"`
}

// PaymentStatus values for credit top-ups.
const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

// PaymentTransaction is a credit top-up in flight. QRCode is whatever the
// gateway hands back for the client to render (a Stripe client secret here).
type PaymentTransaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ProviderRef   string    `json:"provider_ref"`
	Amount        int64     `json:"amount"`
	CreditsAmount int       `json:"credits_amount"`
	Status        string    `json:"status"`
	QRCode        string    `json:"qr_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
