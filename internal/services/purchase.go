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

// ErrInsufficientFunds is returned when a buyer's credit balance cannot cover
// a card's cost. Handlers map it to a top-up prompt, nothing is mutated.
var ErrInsufficientFunds = errors.New("insufficient credits")

// PurchaseStore applies the money movement of an unlock. Both operations are
// atomic: either every row changes or none does.
type PurchaseStore interface {
	// DebitCredits takes cost from the buyer with no seller side, used for
	// unowned ephemeral cards.
	DebitCredits(ctx context.Context, buyerID string, cost int) error
	// ApplyPurchase debits the buyer, credits the seller's earnings and
	// appends the sale receipt in one transaction.
	ApplyPurchase(ctx context.Context, sale *models.Sale, cost int) error
}

// Transactor performs card unlocks. One instance is shared by all handlers.
type Transactor struct {
	store PurchaseStore
}

func NewTransactor(store PurchaseStore) *Transactor {
	return &Transactor{store: store}
}

// AttemptUnlock runs the purchase for viewer against card and reports whether
// the card may open. Owners always pass for free. The debit, the earnings
// credit and the sale receipt land in a single awaited transaction, so a
// failed settlement never leaves the buyer charged.
func (t *Transactor) AttemptUnlock(ctx context.Context, card *models.Card, viewerID, viewerName string) (bool, error) {
	if card.CreatorID != "" && card.CreatorID == viewerID {
		return true, nil
	}
	if card.CreditCost <= 0 {
		return true, nil
	}

	if card.CreatorID == "" {
		err := t.store.DebitCredits(ctx, viewerID, card.CreditCost)
		if errors.Is(err, ErrInsufficientFunds) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("debit credits: %w", err)
		}
		return true, nil
	}

	sale := &models.Sale{
		ID:        uuid.New().String(),
		SellerID:  card.CreatorID,
		BuyerID:   viewerID,
		BuyerName: viewerName,
		CardID:    card.ID,
		CardTitle: card.Title,
		Amount:    models.SellerShare(card.CreditCost),
		CreatedAt: time.Now().UTC(),
	}
	err := t.store.ApplyPurchase(ctx, sale, card.CreditCost)
	if errors.Is(err, ErrInsufficientFunds) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("apply purchase: %w", err)
	}
	return true, nil
}

// PgPurchaseStore is the Postgres-backed PurchaseStore.
type PgPurchaseStore struct{}

func (PgPurchaseStore) DebitCredits(ctx context.Context, buyerID string, cost int) error {
	return applyWalletDelta(ctx, database.PostgresDB, buyerID, WalletDelta{Credits: -cost})
}

func (PgPurchaseStore) ApplyPurchase(ctx context.Context, sale *models.Sale, cost int) error {
	tx, err := database.PostgresDB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyWalletDelta(ctx, tx, sale.BuyerID, WalletDelta{Credits: -cost}); err != nil {
		return err
	}
	if err := applyWalletDelta(ctx, tx, sale.SellerID, WalletDelta{Earnings: sale.Amount}); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sales_transactions (id, seller_id, buyer_id, buyer_name, card_id, card_title, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sale.ID, sale.SellerID, sale.BuyerID, sale.BuyerName, sale.CardID, sale.CardTitle, sale.Amount, sale.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}
