package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/internal/models"
)

// FeedEventKind discriminates feed events.
type FeedEventKind string

const (
	FeedInsert FeedEventKind = "insert"
	FeedUpdate FeedEventKind = "update"
	FeedDelete FeedEventKind = "delete"
)

// FeedEvent is the realtime payload fanned out to every connection watching a
// room. Insert/update carry the full message; delete carries only the id.
type FeedEvent struct {
	Kind      FeedEventKind   `json:"kind"`
	RoomID    string          `json:"room_id"`
	MessageID string          `json:"message_id,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
}

const (
	feedChannelPrefix  = "feed:room:"
	paymentsChannel    = "payments"
	feedChannelPattern = feedChannelPrefix + "*"
)

// PaymentEvent announces a confirmed or rejected top-up so a connected client
// can refresh its balance without polling.
type PaymentEvent struct {
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
	Credits int    `json:"credits"`
}

// FeedHub fans feed events out to local websocket connections. Cross-instance
// delivery rides Redis pub/sub; the hub only tracks this process's listeners.
type FeedHub struct {
	mu       sync.RWMutex
	rooms    map[string]map[chan FeedEvent]struct{}
	payments map[chan PaymentEvent]struct{}

	stopOnce sync.Once
	stopped  chan struct{}
}

func NewFeedHub() *FeedHub {
	return &FeedHub{
		rooms:    make(map[string]map[chan FeedEvent]struct{}),
		payments: make(map[chan PaymentEvent]struct{}),
		stopped:  make(chan struct{}),
	}
}

// Subscribe registers a listener for one room. The returned function removes
// it; callers must invoke it on teardown so handlers do not leak across room
// navigations.
func (h *FeedHub) Subscribe(roomID string) (<-chan FeedEvent, func()) {
	ch := make(chan FeedEvent, 64)

	h.mu.Lock()
	listeners, ok := h.rooms[roomID]
	if !ok {
		listeners = make(map[chan FeedEvent]struct{})
		h.rooms[roomID] = listeners
	}
	listeners[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if listeners, ok := h.rooms[roomID]; ok {
			delete(listeners, ch)
			if len(listeners) == 0 {
				delete(h.rooms, roomID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// SubscribePayments registers a listener for payment confirmations.
func (h *FeedHub) SubscribePayments() (<-chan PaymentEvent, func()) {
	ch := make(chan PaymentEvent, 8)

	h.mu.Lock()
	h.payments[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.payments, ch)
		h.mu.Unlock()
		close(ch)
	}
}

func (h *FeedHub) dispatch(roomID string, event FeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.rooms[roomID] {
		select {
		case ch <- event:
		default:
			// Slow consumer; drop rather than stall the subscriber loop.
		}
	}
}

func (h *FeedHub) dispatchPayment(event PaymentEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.payments {
		select {
		case ch <- event:
		default:
		}
	}
}

// PublishFeedEvent pushes a feed event through Redis so every instance's hub
// (including this one) delivers it to its local listeners.
func PublishFeedEvent(ctx context.Context, event FeedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return database.RedisClient.Publish(ctx, feedChannelPrefix+event.RoomID, payload).Err()
}

// PublishPaymentEvent announces a top-up outcome.
func PublishPaymentEvent(ctx context.Context, event PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return database.RedisClient.Publish(ctx, paymentsChannel, payload).Err()
}

// Start runs the Redis subscriber loop until Stop is called. Reconnects with
// capped exponential backoff when the subscription drops.
func (h *FeedHub) Start(ctx context.Context) {
	go func() {
		backoff := time.Second
		const maxBackoff = 30 * time.Second

		for {
			select {
			case <-h.stopped:
				return
			case <-ctx.Done():
				return
			default:
			}

			if err := h.consume(ctx); err != nil {
				log.Printf("⚠️ Feed subscriber dropped: %v (retrying in %s)", err, backoff)
				select {
				case <-time.After(backoff):
				case <-h.stopped:
					return
				case <-ctx.Done():
					return
				}
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			backoff = time.Second
		}
	}()
}

func (h *FeedHub) consume(ctx context.Context) error {
	pubsub := database.RedisClient.PSubscribe(ctx, feedChannelPattern, paymentsChannel)
	defer pubsub.Close()

	// Force the subscribe round-trip so connection errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Println("✅ Feed subscriber connected")

	ch := pubsub.Channel()
	for {
		select {
		case <-h.stopped:
			return nil
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			if msg.Channel == paymentsChannel {
				var event PaymentEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("⚠️ Bad payment event: %v", err)
					continue
				}
				h.dispatchPayment(event)
				continue
			}

			var event FeedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("⚠️ Bad feed event on %s: %v", msg.Channel, err)
				continue
			}
			if event.RoomID == "" {
				event.RoomID = strings.TrimPrefix(msg.Channel, feedChannelPrefix)
			}
			h.dispatch(event.RoomID, event)
		}
	}
}

// Stop shuts the subscriber loop down. Safe to call more than once.
func (h *FeedHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopped) })
}
