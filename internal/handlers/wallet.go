package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/linkcard/linkcard-backend/internal/config"
	"github.com/linkcard/linkcard-backend/internal/models"
	"github.com/linkcard/linkcard-backend/internal/services"
)

// TopUpRequest asks for a credit purchase of a given amount (whole currency
// units, matched against the credit packages).
type TopUpRequest struct {
	Amount int64 `json:"amount"`
}

// WithdrawalRequest asks for a payout against accrued earnings.
type WithdrawalRequest struct {
	Amount int    `json:"amount"`
	Method string `json:"method"`
}

// PayoutKeyRequest saves a payout destination for one method.
type PayoutKeyRequest struct {
	Method string `json:"method"`
	Key    string `json:"key"`
}

// Wallet returns the caller's balances.
func Wallet(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	profile, err := services.GetProfile(r.Context(), session.UserID)
	if err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"credits":  profile.Credits,
		"earnings": profile.Earnings,
	})
}

// CreateTopUp opens a payment intent for a credit purchase and returns the
// client secret plus the credits the purchase will grant.
func CreateTopUp(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "Amount must be positive", http.StatusBadRequest)
		return
	}

	txn, err := services.CreateTopUpIntent(r.Context(), session.UserID, req.Amount)
	if err != nil {
		log.Printf("⚠️ Failed to create top-up intent: %v", err)
		http.Error(w, "Failed to create payment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"transaction":   txn.ID,
		"client_secret": txn.QRCode,
		"credits":       txn.CreditsAmount,
	})
}

// StripeWebhook settles top-ups as confirmations arrive from the gateway.
// Retries are idempotent: a transaction is credited at most once.
func StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"),
		config.AppConfig.StripeWebhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		log.Printf("⚠️ Webhook signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			http.Error(w, "Bad event payload", http.StatusBadRequest)
			return
		}
		status := models.PaymentApproved
		if event.Type == "payment_intent.payment_failed" {
			status = models.PaymentRejected
		}
		if err := services.ConfirmTopUp(r.Context(), intent.ID, status); err != nil {
			log.Printf("⚠️ Failed to settle top-up %s: %v", intent.ID, err)
			http.Error(w, "Settlement failed", http.StatusInternalServerError)
			return
		}
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
	}

	w.WriteHeader(http.StatusOK)
}

// RequestWithdrawal debits earnings and files a pending payout request.
func RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := services.GetProfile(r.Context(), session.UserID)
	if err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}

	withdrawal, err := services.RequestWithdrawal(r.Context(), profile, req.Amount, models.WithdrawalMethod(req.Method))
	switch {
	case errors.Is(err, services.ErrBelowMinimum):
		http.Error(w, "Amount is below the withdrawal minimum", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrMissingPayoutKey):
		http.Error(w, "Save a payout key for this method first", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrInsufficientFunds):
		http.Error(w, "Not enough earnings", http.StatusPaymentRequired)
		return
	case err != nil:
		log.Printf("⚠️ Failed to file withdrawal: %v", err)
		http.Error(w, "Failed to request withdrawal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    true,
		"message":    "Withdrawal requested",
		"withdrawal": withdrawal,
	})
}

// WithdrawalHistory lists the caller's payout requests.
func WithdrawalHistory(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	history, err := services.WithdrawalHistory(r.Context(), session.UserID)
	if err != nil {
		http.Error(w, "Failed to load withdrawals", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []models.Withdrawal{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     true,
		"withdrawals": history,
	})
}

// SavePayoutKey stores a payout destination on the caller's profile.
func SavePayoutKey(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req PayoutKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	method := models.WithdrawalMethod(req.Method)
	if !method.Valid() {
		http.Error(w, "Unknown payout method", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	if err := services.SavePayoutKey(r.Context(), session.UserID, method, req.Key); err != nil {
		http.Error(w, "Failed to save payout key", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Payout key saved",
	})
}
