package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linkcard/linkcard-backend/internal/database"
)

const (
	// SessionKeyPrefix namespaces session tokens in Redis.
	SessionKeyPrefix = "session:"
	// RoomGrantKeyPrefix namespaces private-room entry grants in Redis.
	RoomGrantKeyPrefix = "roomgrant:"
	// SessionTTL is how long a session token stays valid without re-login.
	SessionTTL = 7 * 24 * time.Hour
)

// ErrSessionNotFound is returned for missing or expired tokens.
var ErrSessionNotFound = errors.New("session not found")

// Session is the per-token identity blob stored in Redis. Guests carry a real
// profile row too, so wallets work the same either way.
type Session struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateSession mints an opaque token for the identity and stores it with a
// sliding 7-day TTL.
func CreateSession(ctx context.Context, session Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	if err := database.RedisClient.Set(ctx, SessionKeyPrefix+token, payload, SessionTTL).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// ValidateSession resolves a token to its identity and refreshes the TTL.
func ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	payload, err := database.RedisClient.Get(ctx, SessionKeyPrefix+token).Result()
	if err != nil {
		return nil, ErrSessionNotFound
	}

	var session Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	database.RedisClient.Expire(ctx, SessionKeyPrefix+token, SessionTTL)
	return &session, nil
}

// DeleteSession signs a token out. Guest wallets are abandoned, not merged.
func DeleteSession(ctx context.Context, token string) error {
	return database.RedisClient.Del(ctx, SessionKeyPrefix+token).Err()
}

// GrantRoomEntry records that this session unlocked the private room derived
// from a chat card. Grants are ephemeral like the unlock state itself and
// share the session's lifetime.
func GrantRoomEntry(ctx context.Context, token, roomID string) error {
	key := RoomGrantKeyPrefix + token + ":" + roomID
	return database.RedisClient.Set(ctx, key, "1", SessionTTL).Err()
}

// HasRoomEntry reports whether the session holds a grant for the room.
func HasRoomEntry(ctx context.Context, token, roomID string) bool {
	key := RoomGrantKeyPrefix + token + ":" + roomID
	n, err := database.RedisClient.Exists(ctx, key).Result()
	return err == nil && n > 0
}
