package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/internal/models"
)

// ErrCardNotFound is returned for lookups and mutations of unknown card ids.
var ErrCardNotFound = errors.New("card not found")

// ErrNotCardOwner is returned when someone edits or deletes a card they did
// not create.
var ErrNotCardOwner = errors.New("not the card owner")

const cardColumns = `id, creator_id, type, title, description, thumbnail, credit_cost,
	media_url, media_type, category, group_label, tags, duration, expiry_seconds,
	repeat_interval, is_blur, blur_level, default_width, layout_style, card_color, created_at`

func scanCard(row interface{ Scan(...interface{}) error }) (*models.Card, error) {
	var (
		c         models.Card
		creatorID sql.NullString
		desc      sql.NullString
		thumb     sql.NullString
		mediaURL  sql.NullString
		category  sql.NullString
		group     sql.NullString
		color     sql.NullString
		tags      pq.StringArray
		createdAt time.Time
	)
	err := row.Scan(&c.ID, &creatorID, &c.Type, &c.Title, &desc, &thumb, &c.CreditCost,
		&mediaURL, &c.MediaType, &category, &group, &tags, &c.Duration, &c.ExpirySeconds,
		&c.RepeatInterval, &c.IsBlur, &c.BlurLevel, &c.DefaultWidth, &c.LayoutStyle, &color, &createdAt)
	if err != nil {
		return nil, err
	}
	c.CreatorID = creatorID.String
	c.Description = desc.String
	c.Thumbnail = thumb.String
	c.MediaURL = mediaURL.String
	c.Category = category.String
	c.Group = group.String
	c.CardColor = color.String
	c.Tags = tags
	c.CreatedAt = createdAt.UnixMilli()
	return &c, nil
}

// CreateCard validates, normalizes and stores a card owned by creatorID.
func CreateCard(ctx context.Context, creatorID string, card *models.Card) error {
	if !card.Type.Valid() {
		return fmt.Errorf("unknown card type %q", card.Type)
	}
	card.CreatorID = creatorID
	card.Normalize()

	_, err := database.PostgresDB.ExecContext(ctx,
		`INSERT INTO cards (id, creator_id, type, title, description, thumbnail, credit_cost,
			media_url, media_type, category, group_label, tags, duration, expiry_seconds,
			repeat_interval, is_blur, blur_level, default_width, layout_style, card_color, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		card.ID, card.CreatorID, card.Type, card.Title, card.Description, card.Thumbnail, card.CreditCost,
		card.MediaURL, card.MediaType, card.Category, card.Group, pq.Array(card.Tags), card.Duration,
		card.ExpirySeconds, card.RepeatInterval, card.IsBlur, card.BlurLevel, card.DefaultWidth,
		card.LayoutStyle, card.CardColor, time.UnixMilli(card.CreatedAt).UTC())
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// GetCard loads one card by id.
func GetCard(ctx context.Context, id string) (*models.Card, error) {
	row := database.PostgresDB.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
	card, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

// ListCardsByCreator returns a host's card gallery, newest first.
func ListCardsByCreator(ctx context.Context, creatorID string) ([]models.Card, error) {
	rows, err := database.PostgresDB.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE creator_id = $1 ORDER BY created_at DESC`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// UpdateCard saves an owner's edit and propagates the new payload into every
// feed message embedding the card, publishing update events per room.
func UpdateCard(ctx context.Context, ownerID string, card *models.Card) error {
	existing, err := GetCard(ctx, card.ID)
	if err != nil {
		return err
	}
	if existing.CreatorID != ownerID {
		return ErrNotCardOwner
	}
	card.CreatorID = existing.CreatorID
	card.CreatedAt = existing.CreatedAt
	card.Normalize()

	_, err = database.PostgresDB.ExecContext(ctx,
		`UPDATE cards SET type = $2, title = $3, description = $4, thumbnail = $5, credit_cost = $6,
			media_url = $7, media_type = $8, category = $9, group_label = $10, tags = $11,
			duration = $12, expiry_seconds = $13, repeat_interval = $14, is_blur = $15,
			blur_level = $16, default_width = $17, layout_style = $18, card_color = $19
		 WHERE id = $1`,
		card.ID, card.Type, card.Title, card.Description, card.Thumbnail, card.CreditCost,
		card.MediaURL, card.MediaType, card.Category, card.Group, pq.Array(card.Tags),
		card.Duration, card.ExpirySeconds, card.RepeatInterval, card.IsBlur,
		card.BlurLevel, card.DefaultWidth, card.LayoutStyle, card.CardColor)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}

	return propagateCardUpdate(ctx, card)
}

func propagateCardUpdate(ctx context.Context, card *models.Card) error {
	if _, err := UpdateCardInMessages(ctx, card); err != nil {
		return fmt.Errorf("propagate card edit: %w", err)
	}

	cursor, err := database.DB.Collection(messagesCollection).Find(ctx, bson.M{"card.id": card.ID})
	if err != nil {
		return err
	}
	var carriers []models.Message
	if err := cursor.All(ctx, &carriers); err != nil {
		return err
	}
	for i := range carriers {
		msg := carriers[i]
		if err := PublishFeedEvent(ctx, FeedEvent{Kind: FeedUpdate, RoomID: msg.RoomID, Message: &msg}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCard removes an owner's card, deletes every feed message embedding it
// and publishes the deletions so connected viewers drop them immediately.
func DeleteCard(ctx context.Context, ownerID, cardID string) error {
	existing, err := GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if existing.CreatorID != ownerID {
		return ErrNotCardOwner
	}

	if _, err := database.PostgresDB.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, cardID); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}

	doomed, err := DeleteCardMessages(ctx, cardID)
	if err != nil {
		return fmt.Errorf("delete card messages: %w", err)
	}
	for _, msg := range doomed {
		event := FeedEvent{Kind: FeedDelete, RoomID: msg.RoomID, MessageID: msg.ID.Hex()}
		if err := PublishFeedEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// PgRecurrenceSource reads recurring cards from Postgres and last-post facts
// from the Mongo feed.
type PgRecurrenceSource struct{}

func (PgRecurrenceSource) RecurringCards(ctx context.Context, ownerID string) ([]models.Card, error) {
	rows, err := database.PostgresDB.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE creator_id = $1 AND repeat_interval > 0`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

func (PgRecurrenceSource) LastPost(ctx context.Context, roomID, cardID string) (time.Time, bool, error) {
	return LastCardPost(ctx, roomID, cardID)
}

// FeedPoster persists a card post as a feed message and broadcasts it.
type FeedPoster struct{}

func (FeedPoster) PostCard(ctx context.Context, roomID string, card models.Card) error {
	msg := &models.Message{
		RoomID:    roomID,
		SenderID:  card.CreatorID,
		Card:      &card,
		CreatedAt: time.UnixMilli(card.CreatedAt).UTC(),
	}
	if err := SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save repost: %w", err)
	}
	return PublishFeedEvent(ctx, FeedEvent{Kind: FeedInsert, RoomID: roomID, Message: msg})
}
