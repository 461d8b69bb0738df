package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/internal/models"
)

// ErrProfileNotFound is returned for unknown profile ids.
var ErrProfileNotFound = errors.New("profile not found")

// WalletDelta is the single shape in which balances change. Every mutation of
// credits or earnings goes through ApplyWalletDelta, there are no ad-hoc
// balance writes elsewhere.
type WalletDelta struct {
	Credits  int
	Earnings int
}

// GetProfile loads a wallet-bearing identity by id.
func GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := database.PostgresDB.QueryRowContext(ctx,
		`SELECT id, username, credits, earnings, COALESCE(profile_photo, ''),
			COALESCE(pix_key, ''), COALESCE(picpay_email, ''), COALESCE(paypal_email, ''),
			COALESCE(stripe_email, ''), is_guest, created_at
		 FROM profiles WHERE id = $1`, id)

	var p models.Profile
	err := row.Scan(&p.ID, &p.Username, &p.Credits, &p.Earnings, &p.ProfilePhoto,
		&p.PixKey, &p.PicpayEmail, &p.PaypalEmail, &p.StripeEmail, &p.IsGuest, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// dbExecer is satisfied by *sql.DB and *sql.Tx, so the wallet guard can run
// standalone or inside a larger transaction.
type dbExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ApplyWalletDelta adjusts a profile's balances atomically. Negative deltas
// are guarded so a balance can never go below zero.
func ApplyWalletDelta(ctx context.Context, userID string, delta WalletDelta) error {
	return applyWalletDelta(ctx, database.PostgresDB, userID, delta)
}

func applyWalletDelta(ctx context.Context, db dbExecer, userID string, delta WalletDelta) error {
	res, err := db.ExecContext(ctx,
		`UPDATE profiles
		 SET credits = credits + $1, earnings = earnings + $2
		 WHERE id = $3 AND credits + $1 >= 0 AND earnings + $2 >= 0`,
		delta.Credits, delta.Earnings, userID)
	if err != nil {
		return fmt.Errorf("apply wallet delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// CreateGuestProfile mints an anonymous wallet with the starting balance.
func CreateGuestProfile(ctx context.Context, username string, startCredits int) (*models.Profile, error) {
	row := database.PostgresDB.QueryRowContext(ctx,
		`INSERT INTO profiles (username, credits, is_guest)
		 VALUES ($1, $2, TRUE)
		 RETURNING id, username, credits, earnings, is_guest, created_at`,
		username, startCredits)

	var p models.Profile
	if err := row.Scan(&p.ID, &p.Username, &p.Credits, &p.Earnings, &p.IsGuest, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("create guest profile: %w", err)
	}
	return &p, nil
}

// SavePayoutKey persists the destination key for one withdrawal method.
func SavePayoutKey(ctx context.Context, userID string, method models.WithdrawalMethod, key string) error {
	var column string
	switch method {
	case models.WithdrawalPix:
		column = "pix_key"
	case models.WithdrawalPicpay:
		column = "picpay_email"
	case models.WithdrawalPaypal:
		column = "paypal_email"
	case models.WithdrawalStripe:
		column = "stripe_email"
	default:
		return fmt.Errorf("unknown withdrawal method %q", method)
	}

	res, err := database.PostgresDB.ExecContext(ctx,
		`UPDATE profiles SET `+column+` = $1 WHERE id = $2`, key, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SaveProfilePhoto stores the uploaded avatar URL.
func SaveProfilePhoto(ctx context.Context, userID, url string) error {
	_, err := database.PostgresDB.ExecContext(ctx,
		`UPDATE profiles SET profile_photo = $1 WHERE id = $2`, url, userID)
	return err
}

// SalesHistory returns a seller's receipts, newest first.
func SalesHistory(ctx context.Context, sellerID string) ([]models.Sale, error) {
	rows, err := database.PostgresDB.QueryContext(ctx,
		`SELECT id, seller_id, buyer_id, buyer_name, card_id, card_title, amount, created_at
		 FROM sales_transactions WHERE seller_id = $1 ORDER BY created_at DESC LIMIT 200`,
		sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		var s models.Sale
		if err := rows.Scan(&s.ID, &s.SellerID, &s.BuyerID, &s.BuyerName, &s.CardID, &s.CardTitle, &s.Amount, &s.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
