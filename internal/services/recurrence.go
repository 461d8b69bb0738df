package services

import (
	"context"
	"log"
	"time"

	"github.com/linkcard/linkcard-backend/internal/models"
)

// recurrenceTick is how often due recurring cards are re-checked.
const recurrenceTick = 60 * time.Second

// RecurrenceSource yields the host's recurring cards and the feed facts the
// due-check needs. Backed by Postgres and Mongo in production, faked in tests.
type RecurrenceSource interface {
	// RecurringCards returns the owner's cards with a repeat interval set.
	RecurringCards(ctx context.Context, ownerID string) ([]models.Card, error)
	// LastPost returns when cardID was last posted into roomID, ok=false
	// when it never was.
	LastPost(ctx context.Context, roomID, cardID string) (time.Time, bool, error)
}

// RecurrencePoster emits a repost into the room feed.
type RecurrencePoster interface {
	PostCard(ctx context.Context, roomID string, card models.Card) error
}

// RecurrenceScheduler re-posts recurring cards into a room while its host is
// connected. One scheduler runs per hosting connection; idempotence across
// overlapping tickers (multiple tabs, multiple instances) comes from deriving
// "last posted" from the feed itself rather than local memory.
type RecurrenceScheduler struct {
	source RecurrenceSource
	poster RecurrencePoster
	now    func() time.Time

	roomID  string
	ownerID string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRecurrenceScheduler(source RecurrenceSource, poster RecurrencePoster, roomID, ownerID string) *RecurrenceScheduler {
	return &RecurrenceScheduler{
		source:  source,
		poster:  poster,
		now:     time.Now,
		roomID:  roomID,
		ownerID: ownerID,
	}
}

// Start launches the tick loop: one immediate pass, then every minute until
// Stop. Tick failures are logged and retried on the next interval.
func (s *RecurrenceScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("⚠️ Recurrence tick failed for room %s: %v", s.roomID, err)
		}

		ticker := time.NewTicker(recurrenceTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					log.Printf("⚠️ Recurrence tick failed for room %s: %v", s.roomID, err)
				}
			}
		}
	}()
}

// Stop cancels the tick loop and waits for the in-flight pass to finish.
func (s *RecurrenceScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// RunOnce performs a single due-check pass and returns how many cards were
// re-posted. A card is due when its repeat interval has elapsed since its
// newest post in the room, falling back to the card's own creation time when
// it was never posted.
func (s *RecurrenceScheduler) RunOnce(ctx context.Context) (int, error) {
	cards, err := s.source.RecurringCards(ctx, s.ownerID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	posted := 0
	for _, card := range cards {
		if card.RepeatInterval <= 0 {
			continue
		}

		reference, found, err := s.source.LastPost(ctx, s.roomID, card.ID)
		if err != nil {
			return posted, err
		}
		if !found {
			reference = time.UnixMilli(card.CreatedAt)
		}

		due := reference.Add(time.Duration(card.RepeatInterval) * time.Minute)
		if !now.After(due) {
			continue
		}

		repost := card.Repost(now)
		if err := s.poster.PostCard(ctx, s.roomID, repost); err != nil {
			return posted, err
		}
		posted++
		log.Printf("🔁 Re-posted card %s into room %s", card.ID, s.roomID)
	}
	return posted, nil
}
