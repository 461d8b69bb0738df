package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExpired_NeverExpiresWhenZero(t *testing.T) {
	t.Parallel()

	c := &Card{ID: "c1", Type: CardTypeImage, CreatedAt: 1000, ExpirySeconds: 0}

	for _, now := range []int64{0, 1000, 1_000_000, 1 << 50} {
		assert.False(t, c.IsExpired(time.UnixMilli(now)), "now=%d", now)
	}
}

func TestIsExpired_CrossesBoundaryExactlyOnce(t *testing.T) {
	t.Parallel()

	created := time.Now().UnixMilli()
	c := &Card{ID: "c1", Type: CardTypeVideo, CreatedAt: created, ExpirySeconds: 60}
	boundary := created + 60*1000

	assert.False(t, c.IsExpired(time.UnixMilli(boundary-1)))
	assert.True(t, c.IsExpired(time.UnixMilli(boundary)))

	// Never reverts once crossed.
	for _, offset := range []int64{1, 1000, 60_000, 86_400_000} {
		assert.True(t, c.IsExpired(time.UnixMilli(boundary+offset)))
	}
}

func TestExpiresIn(t *testing.T) {
	t.Parallel()

	c := &Card{CreatedAt: 0, ExpirySeconds: 120}

	left, ok := c.ExpiresIn(time.UnixMilli(30_000))
	require.True(t, ok)
	assert.Equal(t, int64(90), left)

	left, ok = c.ExpiresIn(time.UnixMilli(500_000))
	require.True(t, ok)
	assert.Equal(t, int64(0), left)

	forever := &Card{CreatedAt: 0, ExpirySeconds: 0}
	_, ok = forever.ExpiresIn(time.UnixMilli(30_000))
	assert.False(t, ok)
}

func TestSellerShare(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cost, want int
	}{
		{0, 0},
		{1, 0},
		{5, 4},
		{10, 8},
		{15, 12},
		{100, 80},
		{-7, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SellerShare(tc.cost), "cost=%d", tc.cost)
	}
}

func TestEffectiveBlur(t *testing.T) {
	t.Parallel()

	c := &Card{IsBlur: true, BlurLevel: 40}
	assert.Equal(t, 40, c.EffectiveBlur(false))
	assert.Equal(t, 0, c.EffectiveBlur(true))

	plain := &Card{IsBlur: false, BlurLevel: 40}
	assert.Equal(t, 0, plain.EffectiveBlur(false))
}

func TestNormalize_ClampsAndTrims(t *testing.T) {
	t.Parallel()

	c := &Card{
		Type:           CardTypeImage,
		Title:          "  Sunset  ",
		Group:          " beach ",
		Tags:           []string{" sea ", "", "sand"},
		CreditCost:     -5,
		Duration:       -1,
		ExpirySeconds:  -60,
		RepeatInterval: -2,
		BlurLevel:      250,
	}
	c.Normalize()

	assert.NotEmpty(t, c.ID, "an id is assigned when absent")
	assert.NotZero(t, c.CreatedAt)
	assert.Equal(t, 0, c.CreditCost)
	assert.Equal(t, 0, c.Duration)
	assert.Equal(t, int64(0), c.ExpirySeconds)
	assert.Equal(t, 0, c.RepeatInterval)
	assert.Equal(t, MaxBlurLevel, c.BlurLevel)
	assert.Equal(t, "Sunset", c.Title)
	assert.Equal(t, "beach", c.Group)
	assert.Equal(t, []string{"sea", "sand"}, c.Tags)
	assert.Equal(t, LayoutClassic, c.LayoutStyle)
	assert.Equal(t, MediaNone, c.MediaType)
}

func TestNormalize_KeepsExistingIdentity(t *testing.T) {
	t.Parallel()

	c := &Card{ID: "keep-me", CreatedAt: 42, Type: CardTypeAudio, LayoutStyle: LayoutMinimal}
	c.Normalize()

	assert.Equal(t, "keep-me", c.ID)
	assert.Equal(t, int64(42), c.CreatedAt)
	assert.Equal(t, LayoutMinimal, c.LayoutStyle)
}

func TestRepost_FreshCopy(t *testing.T) {
	t.Parallel()

	c := &Card{ID: "c1", CreatedAt: 1000, ExpirySeconds: 300, RepeatInterval: 5}
	now := time.UnixMilli(9_000_000)

	r := c.Repost(now)

	assert.Equal(t, "c1", r.ID, "repost keeps the card identity")
	assert.Equal(t, now.UnixMilli(), r.CreatedAt)
	assert.Equal(t, int64(0), r.ExpirySeconds, "repost is always fresh")
	assert.Equal(t, 5, r.RepeatInterval)

	// Original untouched.
	assert.Equal(t, int64(1000), c.CreatedAt)
	assert.Equal(t, int64(300), c.ExpirySeconds)
}

func TestCardTypeHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, CardTypeAudioCall.IsCall())
	assert.True(t, CardTypeVideoCall.IsCall())
	assert.False(t, CardTypeImage.IsCall())
	assert.False(t, CardTypeChat.IsCall())

	assert.True(t, CardTypeChat.Valid())
	assert.False(t, CardType("GIF").Valid())
}
