package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CardType is the closed set of sellable content kinds. Every render and
// interaction site switches exhaustively on it; adding a kind is a
// compile-visible change, not a new magic string.
type CardType string

const (
	CardTypeChat      CardType = "CHAT"
	CardTypeAudio     CardType = "AUDIO"
	CardTypeVideo     CardType = "VIDEO"
	CardTypeImage     CardType = "IMAGE"
	CardTypeAudioCall CardType = "AUDIO_CALL"
	CardTypeVideoCall CardType = "VIDEO_CALL"
)

// Valid reports whether t is one of the known card types.
func (t CardType) Valid() bool {
	switch t {
	case CardTypeChat, CardTypeAudio, CardTypeVideo, CardTypeImage, CardTypeAudioCall, CardTypeVideoCall:
		return true
	}
	return false
}

// IsCall reports whether t requires the call request/accept flow before a session.
func (t CardType) IsCall() bool {
	return t == CardTypeAudioCall || t == CardTypeVideoCall
}

// LayoutStyle selects the card's render variant.
type LayoutStyle string

const (
	LayoutClassic LayoutStyle = "classic"
	LayoutMinimal LayoutStyle = "minimal"
)

// MediaOrigin tags where a card's media came from.
type MediaOrigin string

const (
	MediaUpload MediaOrigin = "upload"
	MediaRecord MediaOrigin = "record"
	MediaNone   MediaOrigin = "none"
)

// Card is a sellable unit of gated content or chat-room access.
// It is embedded verbatim in feed messages (bson) and served to clients (json).
// CreatedAt is epoch millis and anchors all expiry computation; derived
// visibility state is never stored, always recomputed from it.
type Card struct {
	ID             string      `json:"id" bson:"id"`
	CreatorID      string      `json:"creator_id,omitempty" bson:"creator_id,omitempty"`
	Type           CardType    `json:"type" bson:"type"`
	Title          string      `json:"title" bson:"title"`
	Description    string      `json:"description,omitempty" bson:"description,omitempty"`
	Thumbnail      string      `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	CreditCost     int         `json:"creditCost" bson:"credit_cost"`
	MediaURL       string      `json:"mediaUrl,omitempty" bson:"media_url,omitempty"`
	MediaType      MediaOrigin `json:"mediaType" bson:"media_type"`
	Category       string      `json:"category,omitempty" bson:"category,omitempty"`
	Group          string      `json:"group,omitempty" bson:"group,omitempty"`
	Tags           []string    `json:"tags,omitempty" bson:"tags,omitempty"`
	Duration       int         `json:"duration" bson:"duration"`
	ExpirySeconds  int64       `json:"expirySeconds" bson:"expiry_seconds"`
	RepeatInterval int         `json:"repeatInterval" bson:"repeat_interval"`
	IsBlur         bool        `json:"isBlur" bson:"is_blur"`
	BlurLevel      int         `json:"blurLevel" bson:"blur_level"`
	SaveToGallery  bool        `json:"saveToGallery" bson:"save_to_gallery"`
	CreatedAt      int64       `json:"createdAt" bson:"created_at_ms"`
	DefaultWidth   int         `json:"defaultWidth,omitempty" bson:"default_width,omitempty"`
	LayoutStyle    LayoutStyle `json:"layoutStyle" bson:"layout_style"`
	CardColor      string      `json:"cardColor,omitempty" bson:"card_color,omitempty"`
}

// MaxBlurLevel is the upper bound of the blur intensity scale.
const MaxBlurLevel = 100

// Normalize clamps numeric fields to their valid ranges, trims free-form
// text, and assigns identity/timestamps when absent. Called on every card
// accepted from a client before it is stored or posted.
func (c *Card) Normalize() {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	if c.CreditCost < 0 {
		c.CreditCost = 0
	}
	if c.Duration < 0 {
		c.Duration = 0
	}
	if c.ExpirySeconds < 0 {
		c.ExpirySeconds = 0
	}
	if c.RepeatInterval < 0 {
		c.RepeatInterval = 0
	}
	if c.BlurLevel < 0 {
		c.BlurLevel = 0
	}
	if c.BlurLevel > MaxBlurLevel {
		c.BlurLevel = MaxBlurLevel
	}
	if c.LayoutStyle != LayoutMinimal {
		c.LayoutStyle = LayoutClassic
	}
	switch c.MediaType {
	case MediaUpload, MediaRecord:
	default:
		c.MediaType = MediaNone
	}

	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Category = strings.TrimSpace(c.Category)
	c.Group = strings.TrimSpace(c.Group)

	var tags []string
	for _, t := range c.Tags {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	c.Tags = tags
}

// IsExpired reports whether the card's wall-clock TTL has elapsed.
// Cards with ExpirySeconds == 0 never expire.
func (c *Card) IsExpired(now time.Time) bool {
	if c.ExpirySeconds <= 0 {
		return false
	}
	return now.UnixMilli() >= c.CreatedAt+c.ExpirySeconds*1000
}

// ExpiresIn returns the whole seconds until expiry, 0 when already expired,
// and ok=false when the card never expires.
func (c *Card) ExpiresIn(now time.Time) (seconds int64, ok bool) {
	if c.ExpirySeconds <= 0 {
		return 0, false
	}
	diff := (c.CreatedAt + c.ExpirySeconds*1000 - now.UnixMilli()) / 1000
	if diff < 0 {
		diff = 0
	}
	return diff, true
}

// EffectiveBlur returns the blur intensity to apply for a viewer: zero once
// unlocked, otherwise the configured level when blurring is on.
func (c *Card) EffectiveBlur(unlocked bool) int {
	if unlocked || !c.IsBlur {
		return 0
	}
	return c.BlurLevel
}

// SellerShare is the amount credited to the seller on a sale: 80% of the
// cost, floored. The 80/20 split is a fixed platform fee.
func SellerShare(cost int) int {
	if cost <= 0 {
		return 0
	}
	return cost * 4 / 5
}

// Repost returns a fresh copy of the card for an automatic re-post: same
// identity, new creation instant, expiry reset so the repost is always fresh.
func (c *Card) Repost(now time.Time) Card {
	repost := *c
	repost.CreatedAt = now.UnixMilli()
	repost.ExpirySeconds = 0
	return repost
}
