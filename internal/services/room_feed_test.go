package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linkcard/linkcard-backend/internal/models"
)

func feedMessage(text string, at time.Time) models.Message {
	return models.Message{
		ID:        primitive.NewObjectID(),
		RoomID:    "room-1",
		SenderID:  "sender",
		Text:      text,
		CreatedAt: at,
	}
}

func TestFeedView_InsertKeepsOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	view := NewFeedView("room-1", nil)

	second := feedMessage("second", base.Add(2*time.Minute))
	first := feedMessage("first", base.Add(1*time.Minute))
	third := feedMessage("third", base.Add(3*time.Minute))

	// Realtime delivery order is not guaranteed.
	view.Apply(FeedEvent{Kind: FeedInsert, RoomID: "room-1", Message: &second})
	view.Apply(FeedEvent{Kind: FeedInsert, RoomID: "room-1", Message: &third})
	view.Apply(FeedEvent{Kind: FeedInsert, RoomID: "room-1", Message: &first})

	msgs := view.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)
	assert.Equal(t, "third", msgs[2].Text)
}

func TestFeedView_DuplicateInsertIgnored(t *testing.T) {
	t.Parallel()

	msg := feedMessage("hello", time.Now())
	view := NewFeedView("room-1", []models.Message{msg})

	view.Apply(FeedEvent{Kind: FeedInsert, RoomID: "room-1", Message: &msg})
	assert.Equal(t, 1, view.Len())
}

func TestFeedView_UpdateReplacesMutableFields(t *testing.T) {
	t.Parallel()

	msg := feedMessage("before", time.Now())
	msg.Card = &models.Card{ID: "card-1", Title: "Old"}
	view := NewFeedView("room-1", []models.Message{msg})

	edited := msg
	edited.Text = "after"
	edited.Card = &models.Card{ID: "card-1", Title: "New"}
	view.Apply(FeedEvent{Kind: FeedUpdate, RoomID: "room-1", Message: &edited})

	got := view.Messages()[0]
	assert.Equal(t, "after", got.Text)
	assert.Equal(t, "New", got.Card.Title)
	assert.Equal(t, msg.SenderID, got.SenderID, "immutable fields untouched")
}

func TestFeedView_InsertUpdateDeleteLeavesEmpty(t *testing.T) {
	t.Parallel()

	msg := feedMessage("lifecycle", time.Now())
	view := NewFeedView("room-1", nil)

	view.Apply(FeedEvent{Kind: FeedInsert, RoomID: "room-1", Message: &msg})
	edited := msg
	edited.Text = "edited"
	view.Apply(FeedEvent{Kind: FeedUpdate, RoomID: "room-1", Message: &edited})
	view.Apply(FeedEvent{Kind: FeedDelete, RoomID: "room-1", MessageID: msg.ID.Hex()})

	assert.Equal(t, 0, view.Len())
}

func TestFeedView_UnknownIDIsNoOp(t *testing.T) {
	t.Parallel()

	existing := feedMessage("keep", time.Now())
	view := NewFeedView("room-1", []models.Message{existing})

	ghost := feedMessage("ghost", time.Now())
	view.Apply(FeedEvent{Kind: FeedUpdate, RoomID: "room-1", Message: &ghost})
	view.Apply(FeedEvent{Kind: FeedDelete, RoomID: "room-1", MessageID: ghost.ID.Hex()})

	require.Equal(t, 1, view.Len())
	assert.Equal(t, "keep", view.Messages()[0].Text)
}

func TestFeedView_SeedIsSorted(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	late := feedMessage("late", base.Add(time.Hour))
	early := feedMessage("early", base)

	view := NewFeedView("room-1", []models.Message{late, early})

	msgs := view.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "early", msgs[0].Text)
	assert.Equal(t, "late", msgs[1].Text)
}
