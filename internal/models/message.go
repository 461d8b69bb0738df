package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is an entry in a room feed: free text, an embedded card, or both.
// Stored in MongoDB as a flat collection (one document per message) ordered
// by creation time.
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoomID     string             `bson:"room_id" json:"room_id"`
	SenderID   string             `bson:"sender_id" json:"sender_id"`
	SenderName string             `bson:"sender_name" json:"sender_name"`
	Text       string             `bson:"text,omitempty" json:"text,omitempty"`
	Card       *Card              `bson:"card,omitempty" json:"card,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
