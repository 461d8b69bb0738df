package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"

	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/internal/models"
)

// creditPackages maps a purchase amount (whole currency units) to the credits
// granted. Larger packs carry a volume bonus; anything off-menu converts at
// the base 1:10 rate.
var creditPackages = map[int64]int{
	5:  50,
	10: 120,
	20: 300,
}

// CreditsForAmount returns the credits granted for a top-up amount.
func CreditsForAmount(amount int64) int {
	if credits, ok := creditPackages[amount]; ok {
		return credits
	}
	if amount <= 0 {
		return 0
	}
	return int(amount) * 10
}

// CreateTopUpIntent opens a Stripe payment intent for a credit purchase and
// records the pending transaction. The client secret goes back to the client
// to render the payment element; confirmation arrives on the webhook.
func CreateTopUpIntent(ctx context.Context, userID string, amount int64) (*models.PaymentTransaction, error) {
	credits := CreditsForAmount(amount)
	if credits <= 0 {
		return nil, fmt.Errorf("invalid top-up amount %d", amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount * 100),
		Currency: stripe.String(string(stripe.CurrencyBRL)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(fmt.Sprintf("%d credits", credits)),
	}
	params.AddMetadata("user_id", userID)
	params.AddMetadata("credits", fmt.Sprintf("%d", credits))

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	txn := &models.PaymentTransaction{
		ID:            uuid.New().String(),
		UserID:        userID,
		ProviderRef:   intent.ID,
		Amount:        amount,
		CreditsAmount: credits,
		Status:        models.PaymentPending,
		QRCode:        intent.ClientSecret,
	}
	_, err = database.PostgresDB.ExecContext(ctx,
		`INSERT INTO payment_transactions (id, user_id, provider_ref, amount, credits_amount, status, qr_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, txn.UserID, txn.ProviderRef, txn.Amount, txn.CreditsAmount, txn.Status, txn.QRCode)
	if err != nil {
		return nil, fmt.Errorf("record payment transaction: %w", err)
	}
	return txn, nil
}

// ConfirmTopUp settles a payment by provider reference: flips the pending row
// to its final status and, on approval, credits the wallet exactly once. The
// status guard makes webhook retries idempotent.
func ConfirmTopUp(ctx context.Context, providerRef, status string) error {
	row := database.PostgresDB.QueryRowContext(ctx,
		`UPDATE payment_transactions SET status = $2
		 WHERE provider_ref = $1 AND status = $3
		 RETURNING user_id, credits_amount`,
		providerRef, status, models.PaymentPending)

	var userID string
	var credits int
	if err := row.Scan(&userID, &credits); err != nil {
		// Already settled or unknown; webhook retries land here.
		log.Printf("⚠️ Top-up %s not pending, skipping: %v", providerRef, err)
		return nil
	}

	if status != models.PaymentApproved {
		return PublishPaymentEvent(ctx, PaymentEvent{UserID: userID, Status: status})
	}

	if err := ApplyWalletDelta(ctx, userID, WalletDelta{Credits: credits}); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	log.Printf("💰 Credited %d credits to %s", credits, userID)
	return PublishPaymentEvent(ctx, PaymentEvent{UserID: userID, Status: status, Credits: credits})
}
