package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkcard/linkcard-backend/internal/models"
)

func sellerProfile(earnings int) *models.Profile {
	return &models.Profile{
		ID:          uuid.New(),
		Username:    "seller",
		Earnings:    earnings,
		PixKey:      "seller@bank",
		PaypalEmail: "seller@paypal.test",
	}
}

func TestValidateWithdrawal(t *testing.T) {
	t.Parallel()

	p := sellerProfile(200)

	require.NoError(t, ValidateWithdrawal(p, 50, models.WithdrawalPix))
	require.NoError(t, ValidateWithdrawal(p, 200, models.WithdrawalPaypal))

	assert.ErrorIs(t, ValidateWithdrawal(p, 49, models.WithdrawalPix), ErrBelowMinimum)
	assert.ErrorIs(t, ValidateWithdrawal(p, 201, models.WithdrawalPix), ErrInsufficientFunds)
	assert.ErrorIs(t, ValidateWithdrawal(p, 50, models.WithdrawalPicpay), ErrMissingPayoutKey)
	assert.Error(t, ValidateWithdrawal(p, 50, models.WithdrawalMethod("cash")))
}

func TestValidateWithdrawal_ZeroEarnings(t *testing.T) {
	t.Parallel()

	p := sellerProfile(0)
	assert.ErrorIs(t, ValidateWithdrawal(p, 50, models.WithdrawalPix), ErrInsufficientFunds)
}
