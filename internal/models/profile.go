package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a wallet-bearing identity: either a registered user or a guest
// minted on first load. Credits are the spendable balance; Earnings accrue
// from sales of the profile's own cards and are drained only by withdrawals.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Credits      int       `json:"credits"`
	Earnings     int       `json:"earnings"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	PixKey       string    `json:"pix_key,omitempty"`
	PicpayEmail  string    `json:"picpay_email,omitempty"`
	PaypalEmail  string    `json:"paypal_email,omitempty"`
	StripeEmail  string    `json:"stripe_email,omitempty"`
	IsGuest      bool      `json:"is_guest"`
	CreatedAt    time.Time `json:"created_at"`
}

// PayoutKey returns the persisted destination key for a withdrawal method.
func (p *Profile) PayoutKey(method WithdrawalMethod) string {
	switch method {
	case WithdrawalPix:
		return p.PixKey
	case WithdrawalPicpay:
		return p.PicpayEmail
	case WithdrawalPaypal:
		return p.PaypalEmail
	case WithdrawalStripe:
		return p.StripeEmail
	}
	return ""
}
