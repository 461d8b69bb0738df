package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrivateRoomDerivation(t *testing.T) {
	t.Parallel()

	roomID := PrivateRoomID("card-123")
	assert.Equal(t, "priv-card-123", roomID)
	assert.True(t, IsPrivateRoom(roomID))
	assert.Equal(t, "card-123", GateCardID(roomID))

	assert.False(t, IsPrivateRoom("alice"))
	assert.False(t, IsPrivateRoom("card-123"))
}
