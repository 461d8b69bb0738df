package services

import (
	"context"
	"strings"
)

// privateRoomPrefix marks rooms derived from chat cards.
const privateRoomPrefix = "priv-"

// PrivateRoomID derives the private room gated by a chat card.
func PrivateRoomID(cardID string) string {
	return privateRoomPrefix + cardID
}

// IsPrivateRoom reports whether roomID is gated behind a chat-card unlock.
func IsPrivateRoom(roomID string) bool {
	return strings.HasPrefix(roomID, privateRoomPrefix)
}

// GateCardID returns the chat card a private room derives from.
func GateCardID(roomID string) string {
	return strings.TrimPrefix(roomID, privateRoomPrefix)
}

// RoomHost resolves who hosts a room: a public room is hosted by the user it
// is named after, a private room by the creator of the card it derives from.
func RoomHost(ctx context.Context, roomID string) (string, error) {
	if !IsPrivateRoom(roomID) {
		return roomID, nil
	}
	card, err := GetCard(ctx, GateCardID(roomID))
	if err != nil {
		return "", err
	}
	return card.CreatorID, nil
}

// CanEnterRoom decides whether a session may join a room. Public rooms are
// open; private rooms admit their host and sessions holding an unlock grant.
func CanEnterRoom(ctx context.Context, token string, session *Session, roomID string) (bool, error) {
	if !IsPrivateRoom(roomID) {
		return true, nil
	}
	host, err := RoomHost(ctx, roomID)
	if err != nil {
		return false, err
	}
	if host == session.UserID {
		return true, nil
	}
	return HasRoomEntry(ctx, token, roomID), nil
}
