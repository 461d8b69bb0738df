package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkcard/linkcard-backend/internal/models"
)

type fakePurchaseStore struct {
	credits map[string]int
	sales   []*models.Sale
	failure error
}

func newFakePurchaseStore() *fakePurchaseStore {
	return &fakePurchaseStore{credits: make(map[string]int)}
}

func (f *fakePurchaseStore) DebitCredits(_ context.Context, buyerID string, cost int) error {
	if f.failure != nil {
		return f.failure
	}
	if f.credits[buyerID] < cost {
		return ErrInsufficientFunds
	}
	f.credits[buyerID] -= cost
	return nil
}

func (f *fakePurchaseStore) ApplyPurchase(_ context.Context, sale *models.Sale, cost int) error {
	if f.failure != nil {
		return f.failure
	}
	if f.credits[sale.BuyerID] < cost {
		return ErrInsufficientFunds
	}
	f.credits[sale.BuyerID] -= cost
	f.credits[sale.SellerID+":earnings"] += sale.Amount
	f.sales = append(f.sales, sale)
	return nil
}

func TestAttemptUnlock_OwnerAlwaysFree(t *testing.T) {
	t.Parallel()

	store := newFakePurchaseStore()
	store.credits["owner"] = 5
	tr := NewTransactor(store)

	card := &models.Card{ID: "c1", CreatorID: "owner", CreditCost: 100, Type: models.CardTypeImage}

	ok, err := tr.AttemptUnlock(context.Background(), card, "owner", "Owner")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, store.credits["owner"], "owner balance untouched")
	assert.Empty(t, store.sales, "no sale receipt for the owner")
}

func TestAttemptUnlock_InsufficientFunds(t *testing.T) {
	t.Parallel()

	store := newFakePurchaseStore()
	store.credits["buyer"] = 3
	tr := NewTransactor(store)

	card := &models.Card{ID: "c1", CreatorID: "seller", CreditCost: 10, Type: models.CardTypeImage}

	ok, err := tr.AttemptUnlock(context.Background(), card, "buyer", "Buyer")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, store.credits["buyer"], "balance untouched on refusal")
	assert.Empty(t, store.sales)
}

func TestAttemptUnlock_DebitsAndAppendsSale(t *testing.T) {
	t.Parallel()

	store := newFakePurchaseStore()
	store.credits["buyer"] = 50
	tr := NewTransactor(store)

	card := &models.Card{ID: "c1", CreatorID: "seller", CreditCost: 10, Title: "Sunset", Type: models.CardTypeImage}

	ok, err := tr.AttemptUnlock(context.Background(), card, "buyer", "Buyer")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 40, store.credits["buyer"])
	assert.Equal(t, 8, store.credits["seller:earnings"], "seller gets 80%")

	require.Len(t, store.sales, 1)
	sale := store.sales[0]
	assert.Equal(t, "seller", sale.SellerID)
	assert.Equal(t, "buyer", sale.BuyerID)
	assert.Equal(t, "Buyer", sale.BuyerName)
	assert.Equal(t, "c1", sale.CardID)
	assert.Equal(t, "Sunset", sale.CardTitle)
	assert.Equal(t, 8, sale.Amount)
	assert.NotEmpty(t, sale.ID)
}

func TestAttemptUnlock_FreeCardNeedsNoStore(t *testing.T) {
	t.Parallel()

	tr := NewTransactor(newFakePurchaseStore())
	card := &models.Card{ID: "c1", CreatorID: "seller", CreditCost: 0, Type: models.CardTypeChat}

	ok, err := tr.AttemptUnlock(context.Background(), card, "buyer", "Buyer")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAttemptUnlock_UnownedCardDebitsWithoutSale(t *testing.T) {
	t.Parallel()

	store := newFakePurchaseStore()
	store.credits["buyer"] = 50
	tr := NewTransactor(store)

	card := &models.Card{ID: "c1", CreditCost: 10, Type: models.CardTypeImage}

	ok, err := tr.AttemptUnlock(context.Background(), card, "buyer", "Buyer")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 40, store.credits["buyer"])
	assert.Empty(t, store.sales, "no receipt when there is no seller")
}

func TestAttemptUnlock_StoreFailurePropagates(t *testing.T) {
	t.Parallel()

	store := newFakePurchaseStore()
	store.credits["buyer"] = 50
	store.failure = errors.New("connection reset")
	tr := NewTransactor(store)

	card := &models.Card{ID: "c1", CreatorID: "seller", CreditCost: 10, Type: models.CardTypeImage}

	ok, err := tr.AttemptUnlock(context.Background(), card, "buyer", "Buyer")
	require.Error(t, err)
	assert.False(t, ok)
}
