package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/internal/models"
)

// MinWithdrawalAmount is the smallest earnings amount that can be paid out.
const MinWithdrawalAmount = 50

// estimatedPayoutDelay is quoted to the user when the request is accepted.
const estimatedPayoutDelay = 24 * time.Hour

var (
	ErrBelowMinimum     = errors.New("amount below withdrawal minimum")
	ErrMissingPayoutKey = errors.New("no payout key saved for this method")
)

// ValidateWithdrawal runs every synchronous check before anything is written:
// method known, amount at or above the minimum, payout key on file, earnings
// sufficient.
func ValidateWithdrawal(profile *models.Profile, amount int, method models.WithdrawalMethod) error {
	if !method.Valid() {
		return fmt.Errorf("unknown withdrawal method %q", method)
	}
	if amount < MinWithdrawalAmount {
		return ErrBelowMinimum
	}
	if profile.PayoutKey(method) == "" {
		return ErrMissingPayoutKey
	}
	if profile.Earnings < amount {
		return ErrInsufficientFunds
	}
	return nil
}

// RequestWithdrawal debits earnings and appends the pending request in one
// transaction. The earnings guard re-checks inside the transaction, the
// validate call above races with concurrent sales.
func RequestWithdrawal(ctx context.Context, profile *models.Profile, amount int, method models.WithdrawalMethod) (*models.Withdrawal, error) {
	if err := ValidateWithdrawal(profile, amount, method); err != nil {
		return nil, err
	}

	tx, err := database.PostgresDB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := applyWalletDelta(ctx, tx, profile.ID.String(), WalletDelta{Earnings: -amount}); err != nil {
		return nil, err
	}

	w := &models.Withdrawal{
		ID:                uuid.New().String(),
		UserID:            profile.ID.String(),
		Amount:            amount,
		Method:            method,
		TargetKey:         profile.PayoutKey(method),
		Status:            models.WithdrawalPending,
		CreatedAt:         time.Now().UTC(),
		EstimatedPayoutAt: time.Now().UTC().Add(estimatedPayoutDelay),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO withdrawals (id, user_id, amount, method, target_key, status, created_at, estimated_payout_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.UserID, w.Amount, w.Method, w.TargetKey, w.Status, w.CreatedAt, w.EstimatedPayoutAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

// WithdrawalHistory lists a user's payout requests, newest first.
func WithdrawalHistory(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	rows, err := database.PostgresDB.QueryContext(ctx,
		`SELECT id, user_id, amount, method, target_key, status, created_at, estimated_payout_at
		 FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.Withdrawal
	for rows.Next() {
		var w models.Withdrawal
		if err := rows.Scan(&w.ID, &w.UserID, &w.Amount, &w.Method, &w.TargetKey, &w.Status, &w.CreatedAt, &w.EstimatedPayoutAt); err != nil {
			return nil, err
		}
		history = append(history, w)
	}
	return history, rows.Err()
}
