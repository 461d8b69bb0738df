package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkcard/linkcard-backend/internal/models"
)

type fakeRecurrenceSource struct {
	cards     []models.Card
	lastPosts map[string]time.Time
}

func (f *fakeRecurrenceSource) RecurringCards(context.Context, string) ([]models.Card, error) {
	return f.cards, nil
}

func (f *fakeRecurrenceSource) LastPost(_ context.Context, roomID, cardID string) (time.Time, bool, error) {
	at, ok := f.lastPosts[roomID+"/"+cardID]
	return at, ok, nil
}

type feedRecordingPoster struct {
	source *fakeRecurrenceSource
	posted []models.Card
}

// PostCard records the repost in the fake feed, like the real store does, so
// the next pass sees it.
func (p *feedRecordingPoster) PostCard(_ context.Context, roomID string, card models.Card) error {
	p.posted = append(p.posted, card)
	p.source.lastPosts[roomID+"/"+card.ID] = time.UnixMilli(card.CreatedAt)
	return nil
}

func newRecurrenceFixture(cards ...models.Card) (*fakeRecurrenceSource, *feedRecordingPoster, *RecurrenceScheduler) {
	source := &fakeRecurrenceSource{cards: cards, lastPosts: make(map[string]time.Time)}
	poster := &feedRecordingPoster{source: source}
	sched := NewRecurrenceScheduler(source, poster, "room-1", "host")
	return source, poster, sched
}

func TestRunOnce_PostsDueCardOnce(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	card := models.Card{ID: "c1", CreatorID: "host", RepeatInterval: 5, CreatedAt: created.UnixMilli(), ExpirySeconds: 300}
	_, poster, sched := newRecurrenceFixture(card)

	// Just past due.
	sched.now = func() time.Time { return created.Add(5*time.Minute + time.Millisecond) }

	posted, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, posted)
	require.Len(t, poster.posted, 1)

	repost := poster.posted[0]
	assert.Equal(t, "c1", repost.ID, "repost keeps the card identity")
	assert.Equal(t, int64(0), repost.ExpirySeconds, "repost is always fresh")
	assert.Equal(t, sched.now().UnixMilli(), repost.CreatedAt)

	// A second pass one second later sees the fresh post and stays quiet.
	sched.now = func() time.Time { return created.Add(5*time.Minute + time.Second) }
	posted, err = sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, posted)
	assert.Len(t, poster.posted, 1)
}

func TestRunOnce_NotYetDue(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	card := models.Card{ID: "c1", CreatorID: "host", RepeatInterval: 5, CreatedAt: created.UnixMilli()}
	_, poster, sched := newRecurrenceFixture(card)

	sched.now = func() time.Time { return created.Add(4 * time.Minute) }

	posted, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, posted)
	assert.Empty(t, poster.posted)
}

func TestRunOnce_ReferenceIsNewestFeedPost(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	card := models.Card{ID: "c1", CreatorID: "host", RepeatInterval: 5, CreatedAt: created.UnixMilli()}
	source, poster, sched := newRecurrenceFixture(card)

	// Posted manually 2 minutes ago, even though the card itself is old.
	lastPost := created.Add(30 * time.Minute)
	source.lastPosts["room-1/c1"] = lastPost

	sched.now = func() time.Time { return lastPost.Add(2 * time.Minute) }
	posted, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, posted, "feed post is the reference, not card age")

	sched.now = func() time.Time { return lastPost.Add(5*time.Minute + time.Second) }
	posted, err = sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, posted)
	assert.Len(t, poster.posted, 1)
}

func TestRunOnce_SkipsOneShotCards(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oneShot := models.Card{ID: "c1", CreatorID: "host", RepeatInterval: 0, CreatedAt: created.UnixMilli()}
	_, poster, sched := newRecurrenceFixture(oneShot)

	sched.now = func() time.Time { return created.Add(24 * time.Hour) }

	posted, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, posted)
	assert.Empty(t, poster.posted)
}

func TestStartStop_NoLeakedTicker(t *testing.T) {
	t.Parallel()

	created := time.Now().Add(-time.Hour)
	card := models.Card{ID: "c1", CreatorID: "host", RepeatInterval: 5, CreatedAt: created.UnixMilli()}
	_, poster, sched := newRecurrenceFixture(card)

	sched.Start(context.Background())
	sched.Stop()

	// The immediate pass ran before Stop returned; nothing runs after.
	assert.Len(t, poster.posted, 1)
}
