package services

import (
	"time"

	"github.com/linkcard/linkcard-backend/internal/models"
)

// ViewState is a card's visibility state for one viewer. It is derived,
// per-connection state: never persisted, always recomputed from the card's
// timestamps plus the viewer's unlock outcome.
type ViewState string

const (
	StateLocked         ViewState = "locked"
	StateUnlockedIdle   ViewState = "unlocked"
	StateInSession      ViewState = "in_session"
	StateCallRequesting ViewState = "call_requesting"
	StateCallAccepted   ViewState = "call_accepted"
	StateExpired        ViewState = "expired"
)

// UnlockFunc attempts a purchase and reports whether the viewer may open the
// card. Implemented by the purchase transactor.
type UnlockFunc func(card *models.Card) (bool, error)

// CardInstance tracks one viewer's state for one rendered card. Instances are
// owned by a single websocket connection and advanced by its 1-second ticker,
// so no locking is needed.
type CardInstance struct {
	Card      *models.Card
	State     ViewState
	Countdown int
	isOwner   bool
	hostMode  bool
}

// NewCardInstance mounts a card for a viewer. Owners start unlocked; everyone
// else starts locked. Expiry is checked immediately so a stale card never
// renders as purchasable.
func NewCardInstance(card *models.Card, viewerID string, hostMode bool, now time.Time) *CardInstance {
	inst := &CardInstance{
		Card:      card,
		Countdown: card.Duration,
		isOwner:   card.CreatorID != "" && card.CreatorID == viewerID,
		hostMode:  hostMode,
	}
	if inst.isOwner {
		inst.State = StateUnlockedIdle
	} else {
		inst.State = StateLocked
	}
	inst.refreshExpiry(now)
	return inst
}

// Refresh swaps in an updated payload for the same card id. A repost moves the
// creation instant, so an instance sitting on EXPIRED is rebuilt from the new
// timestamps: the fresh post renders locked (or unlocked for the owner)
// instead of inheriting the terminal state. An in-place edit keeps the
// viewer's state.
func (ci *CardInstance) Refresh(card *models.Card, now time.Time) {
	reposted := card.CreatedAt != ci.Card.CreatedAt
	ci.Card = card
	if reposted && ci.State == StateExpired {
		ci.Countdown = card.Duration
		if ci.isOwner {
			ci.State = StateUnlockedIdle
		} else {
			ci.State = StateLocked
		}
	}
	ci.refreshExpiry(now)
}

// Owner reports whether the viewer created the card.
func (ci *CardInstance) Owner() bool { return ci.isOwner }

// Visible reports whether the card should be rendered at all for this viewer.
// Expired cards stay visible only to their owner in host mode, so they can
// still be edited or deleted.
func (ci *CardInstance) Visible() bool {
	if ci.State != StateExpired {
		return true
	}
	return ci.isOwner && ci.hostMode
}

func (ci *CardInstance) refreshExpiry(now time.Time) {
	if ci.State == StateExpired {
		return
	}
	if ci.Card.IsExpired(now) {
		ci.State = StateExpired
	}
}

// Tick advances the instance by one second of wall-clock time. It drives the
// session countdown and flips any state to expired once the card's TTL lapses.
func (ci *CardInstance) Tick(now time.Time) {
	ci.refreshExpiry(now)
	if ci.State != StateInSession && ci.State != StateCallAccepted {
		return
	}
	ci.Countdown--
	if ci.Countdown <= 0 {
		ci.CloseSession()
	}
}

// Interact handles the viewer tapping the card. Locked cards go through the
// unlock func; unlocked non-call cards open a session; call cards move to
// requesting. Chat cards never enter a session here, entry to the private
// room is granted by the unlock itself.
func (ci *CardInstance) Interact(now time.Time, unlock UnlockFunc) (ViewState, error) {
	ci.refreshExpiry(now)

	switch ci.State {
	case StateExpired:
		return ci.State, nil

	case StateLocked:
		ok, err := unlock(ci.Card)
		if err != nil {
			return ci.State, err
		}
		if !ok {
			return ci.State, ErrInsufficientFunds
		}
		ci.State = StateUnlockedIdle
		return ci.State, nil

	case StateUnlockedIdle:
		if ci.Card.Type == models.CardTypeChat {
			return ci.State, nil
		}
		if ci.Card.Type.IsCall() {
			ci.State = StateCallRequesting
			return ci.State, nil
		}
		ci.Countdown = ci.Card.Duration
		ci.State = StateInSession
		return ci.State, nil
	}

	return ci.State, nil
}

// AcceptCall moves a requesting call card into the accepted call. Acceptance
// arrives from the host side; anything but a pending request is ignored. The
// call runs on the same countdown as a session and ends the same way.
func (ci *CardInstance) AcceptCall() ViewState {
	if ci.State != StateCallRequesting {
		return ci.State
	}
	ci.State = StateCallAccepted
	ci.Countdown = ci.Card.Duration
	return ci.State
}

// CloseSession ends the full-content view or live call and resets the
// countdown so the session can be re-entered.
func (ci *CardInstance) CloseSession() ViewState {
	if ci.State == StateInSession || ci.State == StateCallAccepted {
		ci.State = StateUnlockedIdle
	}
	ci.Countdown = ci.Card.Duration
	return ci.State
}

// Snapshot is the wire form of an instance sent to the viewer over the
// websocket: state plus the render-affecting derived values.
type Snapshot struct {
	CardID      string    `json:"cardId"`
	State       ViewState `json:"state"`
	Countdown   int       `json:"countdown,omitempty"`
	Blur        int       `json:"blur"`
	ExpiresIn   int64     `json:"expiresIn,omitempty"`
	NeverEnds   bool      `json:"neverEnds"`
	IsOwner     bool      `json:"isOwner"`
	Purchasable bool      `json:"purchasable"`
}

// Snapshot renders the instance for the wire.
func (ci *CardInstance) Snapshot(now time.Time) Snapshot {
	unlocked := ci.State != StateLocked && ci.State != StateExpired
	left, bounded := ci.Card.ExpiresIn(now)
	return Snapshot{
		CardID:      ci.Card.ID,
		State:       ci.State,
		Countdown:   ci.Countdown,
		Blur:        ci.Card.EffectiveBlur(unlocked),
		ExpiresIn:   left,
		NeverEnds:   !bounded,
		IsOwner:     ci.isOwner,
		Purchasable: ci.State == StateLocked,
	}
}
