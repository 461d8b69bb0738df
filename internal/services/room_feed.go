package services

import (
	"context"
	"log"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/internal/models"
)

const messagesCollection = "messages"

// EnsureFeedIndexes creates the compound index that backs ordered room loads
// and the card-id lookup used by the recurrence scheduler.
func EnsureFeedIndexes(ctx context.Context) error {
	coll := database.DB.Collection(messagesCollection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "card.id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}

	log.Println("✅ Feed indexes ensured")
	return nil
}

// SaveMessage persists a feed entry and fills in its generated id.
func SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	res, err := database.DB.Collection(messagesCollection).InsertOne(ctx, msg)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return nil
}

// LoadRoomMessages returns the room's full feed ordered oldest first.
func LoadRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	coll := database.DB.Collection(messagesCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// LastCardPost returns the creation instant of the newest message in roomID
// embedding cardID, or ok=false when the card was never posted there.
func LastCardPost(ctx context.Context, roomID, cardID string) (time.Time, bool, error) {
	coll := database.DB.Collection(messagesCollection)

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var msg models.Message
	err := coll.FindOne(ctx, bson.M{"room_id": roomID, "card.id": cardID}, opts).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return msg.CreatedAt, true, nil
}

// UpdateCardInMessages rewrites the embedded card payload in every message
// that carries it, so an edit propagates to feeds already rendered.
func UpdateCardInMessages(ctx context.Context, card *models.Card) (int64, error) {
	coll := database.DB.Collection(messagesCollection)

	res, err := coll.UpdateMany(ctx,
		bson.M{"card.id": card.ID},
		bson.M{"$set": bson.M{"card": card}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// DeleteCardMessages removes every message embedding the card and returns the
// ids of the deleted messages so delete events can be fanned out per room.
func DeleteCardMessages(ctx context.Context, cardID string) ([]models.Message, error) {
	coll := database.DB.Collection(messagesCollection)

	cursor, err := coll.Find(ctx, bson.M{"card.id": cardID})
	if err != nil {
		return nil, err
	}
	var doomed []models.Message
	if err := cursor.All(ctx, &doomed); err != nil {
		return nil, err
	}
	if len(doomed) == 0 {
		return nil, nil
	}

	ids := make([]interface{}, 0, len(doomed))
	for _, m := range doomed {
		ids = append(ids, m.ID)
	}
	if _, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return doomed, nil
}

// DeleteMessage removes a single feed entry.
func DeleteMessage(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = database.DB.Collection(messagesCollection).DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

// FeedView is a local ordered mirror of one room's messages, kept consistent
// with feed events arriving out of process. It has no locking of its own, the
// owning connection's event loop applies events one at a time.
type FeedView struct {
	roomID   string
	messages []models.Message
}

// NewFeedView seeds a view from a bulk load. The initial slice is sorted
// defensively since the store orders it but callers may not.
func NewFeedView(roomID string, initial []models.Message) *FeedView {
	view := &FeedView{roomID: roomID, messages: append([]models.Message(nil), initial...)}
	sort.SliceStable(view.messages, func(i, j int) bool {
		return view.messages[i].CreatedAt.Before(view.messages[j].CreatedAt)
	})
	return view
}

// Messages returns the current ordered feed. The returned slice is shared;
// callers must not mutate it.
func (v *FeedView) Messages() []models.Message { return v.messages }

// Len returns the number of messages in the view.
func (v *FeedView) Len() int { return len(v.messages) }

// Apply folds one feed event into the view. Inserts land in sorted position,
// updates replace the mutable fields in place, deletes remove the entry.
// Events naming an unknown id are ignored.
func (v *FeedView) Apply(event FeedEvent) {
	switch event.Kind {
	case FeedInsert:
		if event.Message == nil {
			return
		}
		if v.indexOf(event.Message.ID.Hex()) >= 0 {
			return
		}
		at := sort.Search(len(v.messages), func(i int) bool {
			return v.messages[i].CreatedAt.After(event.Message.CreatedAt)
		})
		v.messages = append(v.messages, models.Message{})
		copy(v.messages[at+1:], v.messages[at:])
		v.messages[at] = *event.Message

	case FeedUpdate:
		if event.Message == nil {
			return
		}
		if i := v.indexOf(event.Message.ID.Hex()); i >= 0 {
			v.messages[i].Text = event.Message.Text
			v.messages[i].Card = event.Message.Card
		}

	case FeedDelete:
		if i := v.indexOf(event.MessageID); i >= 0 {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
		}
	}
}

func (v *FeedView) indexOf(id string) int {
	for i := range v.messages {
		if v.messages[i].ID.Hex() == id {
			return i
		}
	}
	return -1
}
