package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreditsForAmount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		amount int64
		want   int
	}{
		{5, 50},
		{10, 120},
		{20, 300},
		{7, 70},
		{1, 10},
		{100, 1000},
		{0, 0},
		{-5, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CreditsForAmount(tc.amount), "amount=%d", tc.amount)
	}
}
