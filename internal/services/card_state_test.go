package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkcard/linkcard-backend/internal/models"
)

func alwaysUnlock(*models.Card) (bool, error)  { return true, nil }
func refuseUnlock(*models.Card) (bool, error)  { return false, nil }
func erroredUnlock(*models.Card) (bool, error) { return false, errors.New("store down") }

func TestNewCardInstance_OwnerStartsUnlocked(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeImage, CreatedAt: now.UnixMilli()}

	owner := NewCardInstance(card, "host", true, now)
	assert.Equal(t, StateUnlockedIdle, owner.State)
	assert.True(t, owner.Owner())

	viewer := NewCardInstance(card, "someone-else", false, now)
	assert.Equal(t, StateLocked, viewer.State)
	assert.False(t, viewer.Owner())
}

func TestNewCardInstance_StaleCardMountsExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{
		ID:            "c1",
		CreatorID:     "host",
		Type:          models.CardTypeImage,
		CreatedAt:     now.Add(-2 * time.Minute).UnixMilli(),
		ExpirySeconds: 60,
	}

	inst := NewCardInstance(card, "viewer", false, now)
	assert.Equal(t, StateExpired, inst.State)
	assert.False(t, inst.Visible(), "expired cards are hidden from viewers")

	host := NewCardInstance(card, "host", true, now)
	assert.Equal(t, StateExpired, host.State)
	assert.True(t, host.Visible(), "the owner still sees it in host mode")
}

func TestInteract_UnlockTransitions(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeImage, CreditCost: 10, CreatedAt: now.UnixMilli(), Duration: 3}
	inst := NewCardInstance(card, "viewer", false, now)

	state, err := inst.Interact(now, refuseUnlock)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, StateLocked, state, "refused purchase keeps the card locked")

	state, err = inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	assert.Equal(t, StateUnlockedIdle, state)

	state, err = inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	assert.Equal(t, StateInSession, state)
	assert.Equal(t, 3, inst.Countdown)
}

func TestInteract_UnlockErrorStaysLocked(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeImage, CreditCost: 10, CreatedAt: now.UnixMilli()}
	inst := NewCardInstance(card, "viewer", false, now)

	state, err := inst.Interact(now, erroredUnlock)
	require.Error(t, err)
	assert.Equal(t, StateLocked, state)
}

func TestSessionCountdown_ResetsOnExit(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeVideo, CreatedAt: now.UnixMilli(), Duration: 3}
	inst := NewCardInstance(card, "host", true, now)

	_, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	require.Equal(t, StateInSession, inst.State)

	for i := 0; i < 3; i++ {
		now = now.Add(time.Second)
		inst.Tick(now)
	}
	assert.Equal(t, StateUnlockedIdle, inst.State, "countdown reaching zero closes the session")
	assert.Equal(t, 3, inst.Countdown, "countdown resets so the session can be re-entered")
}

func TestCloseSession_Explicit(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeAudio, CreatedAt: now.UnixMilli(), Duration: 10}
	inst := NewCardInstance(card, "host", true, now)

	_, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	inst.Tick(now.Add(time.Second))
	require.Equal(t, 9, inst.Countdown)

	assert.Equal(t, StateUnlockedIdle, inst.CloseSession())
	assert.Equal(t, 10, inst.Countdown)
}

func TestCallCards_RequestThenAccept(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeVideoCall, CreatedAt: now.UnixMilli(), Duration: 30}
	inst := NewCardInstance(card, "viewer", false, now)

	_, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	require.Equal(t, StateUnlockedIdle, inst.State)

	state, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	assert.Equal(t, StateCallRequesting, state)

	assert.Equal(t, StateCallAccepted, inst.AcceptCall())
	assert.Equal(t, 30, inst.Countdown)
}

func TestAcceptedCall_CountsDownToIdle(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeAudioCall, CreatedAt: now.UnixMilli(), Duration: 2}
	inst := NewCardInstance(card, "viewer", false, now)

	_, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	_, err = inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	require.Equal(t, StateCallAccepted, inst.AcceptCall())

	inst.Tick(now.Add(time.Second))
	assert.Equal(t, StateCallAccepted, inst.State, "the call stays live while the countdown runs")

	inst.Tick(now.Add(2 * time.Second))
	assert.Equal(t, StateUnlockedIdle, inst.State)
	assert.Equal(t, 2, inst.Countdown)
}

func TestAcceptCall_IgnoredOutsideRequest(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeAudioCall, CreatedAt: now.UnixMilli()}
	inst := NewCardInstance(card, "viewer", false, now)

	assert.Equal(t, StateLocked, inst.AcceptCall())
}

func TestChatCards_NeverEnterSession(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeChat, CreditCost: 5, CreatedAt: now.UnixMilli()}
	inst := NewCardInstance(card, "viewer", false, now)

	_, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	require.Equal(t, StateUnlockedIdle, inst.State)

	state, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	assert.Equal(t, StateUnlockedIdle, state)
}

func TestTick_ExpiryBeatsAnyState(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeImage, CreatedAt: now.UnixMilli(), ExpirySeconds: 2, Duration: 60}
	inst := NewCardInstance(card, "host", true, now)

	_, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	require.Equal(t, StateInSession, inst.State)

	inst.Tick(now.Add(3 * time.Second))
	assert.Equal(t, StateExpired, inst.State)

	// Interacting with an expired card is a no-op, even for purchase.
	state, err := inst.Interact(now.Add(4*time.Second), alwaysUnlock)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, state)
}

func TestRefresh_RepostRevivesExpiredInstance(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{
		ID:            "c1",
		CreatorID:     "host",
		Type:          models.CardTypeImage,
		CreditCost:    5,
		CreatedAt:     now.Add(-2 * time.Minute).UnixMilli(),
		ExpirySeconds: 60,
		Duration:      10,
	}
	inst := NewCardInstance(card, "viewer", false, now)
	require.Equal(t, StateExpired, inst.State)
	require.False(t, inst.Visible())

	fresh := card.Repost(now)
	inst.Refresh(&fresh, now)
	assert.Equal(t, StateLocked, inst.State, "the fresh post is purchasable again")
	assert.True(t, inst.Visible())
	assert.True(t, inst.Snapshot(now).Purchasable)
	assert.Equal(t, 10, inst.Countdown)
}

func TestRefresh_RepostRevivesOwnerUnlocked(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{
		ID:            "c1",
		CreatorID:     "host",
		Type:          models.CardTypeImage,
		CreatedAt:     now.Add(-2 * time.Minute).UnixMilli(),
		ExpirySeconds: 60,
	}
	inst := NewCardInstance(card, "host", false, now)
	require.Equal(t, StateExpired, inst.State)

	fresh := card.Repost(now)
	inst.Refresh(&fresh, now)
	assert.Equal(t, StateUnlockedIdle, inst.State)
}

func TestRefresh_EditKeepsViewerState(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{ID: "c1", CreatorID: "host", Type: models.CardTypeImage, CreditCost: 5, CreatedAt: now.UnixMilli()}
	inst := NewCardInstance(card, "viewer", false, now)

	_, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)
	require.Equal(t, StateUnlockedIdle, inst.State)

	edited := *card
	edited.Title = "new title"
	inst.Refresh(&edited, now)
	assert.Equal(t, StateUnlockedIdle, inst.State, "an in-place edit does not relock the card")
	assert.Equal(t, "new title", inst.Card.Title)
}

func TestSnapshot_BlurAndPurchasable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	card := &models.Card{
		ID:        "c1",
		CreatorID: "host",
		Type:      models.CardTypeImage,
		CreatedAt: now.UnixMilli(),
		IsBlur:    true,
		BlurLevel: 60,
	}
	inst := NewCardInstance(card, "viewer", false, now)

	snap := inst.Snapshot(now)
	assert.Equal(t, 60, snap.Blur)
	assert.True(t, snap.Purchasable)
	assert.True(t, snap.NeverEnds)

	_, err := inst.Interact(now, alwaysUnlock)
	require.NoError(t, err)

	snap = inst.Snapshot(now)
	assert.Equal(t, 0, snap.Blur, "unlock removes the blur")
	assert.False(t, snap.Purchasable)
}
