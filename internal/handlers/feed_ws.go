package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linkcard/linkcard-backend/internal/models"
	"github.com/linkcard/linkcard-backend/internal/services"
)

// FeedHub is the shared realtime fan-out, wired in main.
var FeedHub *services.FeedHub

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// FeedClientMessage represents messages coming from the client over WebSocket.
type FeedClientMessage struct {
	Type   string `json:"type"` // "interact", "accept_call", "close_session", "message", "ping"
	CardID string `json:"cardId,omitempty"`
	Text   string `json:"text,omitempty"`
}

// feedServerMessage is the envelope pushed to the client.
type feedServerMessage struct {
	Type      string              `json:"type"` // "feed", "event", "snapshot", "room_granted", "payment", "error"
	Messages  []models.Message    `json:"messages,omitempty"`
	Snapshots []services.Snapshot `json:"snapshots,omitempty"`
	Event     *services.FeedEvent `json:"event,omitempty"`
	Snapshot  *services.Snapshot  `json:"snapshot,omitempty"`
	RoomID    string              `json:"roomId,omitempty"`
	Credits   int                 `json:"credits,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// RoomFeed is the realtime gateway for one viewer in one room. It owns the
// per-card state machine instances for the connection and drives them with a
// 1-second tick. When the viewer hosts the room it also runs the recurrence
// scheduler for the duration of the connection.
func RoomFeed(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	session, err := services.ValidateSession(r.Context(), token)
	if err != nil {
		http.Error(w, "Invalid session token", http.StatusUnauthorized)
		return
	}

	roomID := strings.TrimSpace(r.URL.Query().Get("room"))
	if roomID == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	allowed, err := services.CanEnterRoom(r.Context(), token, session, roomID)
	if err != nil {
		http.Error(w, "Failed to check room access", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Unlock the chat card to enter this room", http.StatusForbidden)
		return
	}

	host, err := services.RoomHost(r.Context(), roomID)
	if err != nil {
		http.Error(w, "Failed to resolve room", http.StatusInternalServerError)
		return
	}
	hostMode := host == session.UserID

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &feedClient{
		session:   session,
		token:     token,
		roomID:    roomID,
		hostMode:  hostMode,
		instances: make(map[string]*services.CardInstance),
		outbound:  make(chan feedServerMessage, 64),
	}

	// Subscribe before the bulk load so nothing posted in between is missed;
	// the view drops duplicate inserts.
	events, unsubscribe := FeedHub.Subscribe(roomID)
	defer unsubscribe()
	payments, unsubscribePayments := FeedHub.SubscribePayments()
	defer unsubscribePayments()

	if err := client.loadFeed(ctx); err != nil {
		log.Printf("⚠️ Failed to load feed for room %s: %v", roomID, err)
		return
	}

	if hostMode {
		scheduler := services.NewRecurrenceScheduler(
			services.PgRecurrenceSource{}, services.FeedPoster{}, roomID, session.UserID)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// Writer goroutine: the only place that writes to the connection.
	go func() {
		for msg := range client.outbound {
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				return
			}
		}
	}()

	// Reader goroutine: forwards client actions into the event loop.
	actions := make(chan FeedClientMessage, 16)
	go func() {
		defer cancel()
		conn.SetReadLimit(64 * 1024)
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			return nil
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			var msg FeedClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case actions <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	client.sendInitialFeed()

	// Event loop: the single goroutine that touches the view and instances.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer close(client.outbound)

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			client.tick(now)

		case event, ok := <-events:
			if !ok {
				return
			}
			client.applyEvent(event)

		case payment, ok := <-payments:
			if !ok {
				return
			}
			if payment.UserID == session.UserID {
				client.send(feedServerMessage{Type: "payment", Credits: payment.Credits})
			}

		case action := <-actions:
			client.handleAction(ctx, action)
		}
	}
}

// feedClient is one connection's view of a room.
type feedClient struct {
	session   *services.Session
	token     string
	roomID    string
	hostMode  bool
	view      *services.FeedView
	instances map[string]*services.CardInstance
	outbound  chan feedServerMessage
}

func (c *feedClient) send(msg feedServerMessage) {
	select {
	case c.outbound <- msg:
	default:
		// Slow client; drop rather than block the event loop.
	}
}

func (c *feedClient) loadFeed(ctx context.Context) error {
	messages, err := services.LoadRoomMessages(ctx, c.roomID)
	if err != nil {
		return err
	}
	c.view = services.NewFeedView(c.roomID, messages)

	now := time.Now()
	for i := range messages {
		if card := messages[i].Card; card != nil {
			c.mountCard(card, now)
		}
	}
	return nil
}

// mountCard creates or refreshes the state machine instance for a card. A
// repost carries the same card id with a fresh creation instant, so an
// existing instance is refreshed in place instead of mounted twice.
func (c *feedClient) mountCard(card *models.Card, now time.Time) {
	if inst, ok := c.instances[card.ID]; ok {
		inst.Refresh(card, now)
		return
	}
	c.instances[card.ID] = services.NewCardInstance(card, c.session.UserID, c.hostMode, now)
}

func (c *feedClient) sendInitialFeed() {
	now := time.Now()
	visible := make([]models.Message, 0, c.view.Len())
	snapshots := make([]services.Snapshot, 0, len(c.instances))

	for _, msg := range c.view.Messages() {
		if msg.Card != nil {
			inst, ok := c.instances[msg.Card.ID]
			if ok && !inst.Visible() {
				continue
			}
		}
		visible = append(visible, msg)
	}
	for _, inst := range c.instances {
		if inst.Visible() {
			snapshots = append(snapshots, inst.Snapshot(now))
		}
	}

	c.send(feedServerMessage{Type: "feed", Messages: visible, Snapshots: snapshots})
}

func (c *feedClient) tick(now time.Time) {
	for _, inst := range c.instances {
		before := inst.State
		countdownBefore := inst.Countdown
		inst.Tick(now)
		if inst.State != before || inst.Countdown != countdownBefore {
			snap := inst.Snapshot(now)
			c.send(feedServerMessage{Type: "snapshot", Snapshot: &snap})
		}
	}
}

func (c *feedClient) applyEvent(event services.FeedEvent) {
	now := time.Now()

	// Remember the card behind a deleted message before the view forgets it.
	var deletedCard string
	if event.Kind == services.FeedDelete {
		for _, msg := range c.view.Messages() {
			if msg.ID.Hex() == event.MessageID && msg.Card != nil {
				deletedCard = msg.Card.ID
				break
			}
		}
	}

	c.view.Apply(event)

	switch event.Kind {
	case services.FeedInsert, services.FeedUpdate:
		if event.Message != nil && event.Message.Card != nil {
			c.mountCard(event.Message.Card, now)
		}
	case services.FeedDelete:
		if deletedCard != "" && !c.cardStillPosted(deletedCard) {
			delete(c.instances, deletedCard)
		}
	}

	// Suppress events for cards this viewer cannot see.
	if event.Message != nil && event.Message.Card != nil {
		if inst, ok := c.instances[event.Message.Card.ID]; ok && !inst.Visible() {
			return
		}
	}

	c.send(feedServerMessage{Type: "event", Event: &event})
	if event.Message != nil && event.Message.Card != nil {
		if inst, ok := c.instances[event.Message.Card.ID]; ok {
			snap := inst.Snapshot(now)
			c.send(feedServerMessage{Type: "snapshot", Snapshot: &snap})
		}
	}
}

func (c *feedClient) cardStillPosted(cardID string) bool {
	for _, msg := range c.view.Messages() {
		if msg.Card != nil && msg.Card.ID == cardID {
			return true
		}
	}
	return false
}

func (c *feedClient) handleAction(ctx context.Context, action FeedClientMessage) {
	now := time.Now()

	switch action.Type {
	case "interact":
		inst, ok := c.instances[action.CardID]
		if !ok {
			return
		}
		unlock := func(card *models.Card) (bool, error) {
			return Transactor.AttemptUnlock(ctx, card, c.session.UserID, c.session.Username)
		}
		_, err := inst.Interact(now, unlock)
		if err == services.ErrInsufficientFunds {
			c.send(feedServerMessage{Type: "error", Error: "insufficient_credits"})
			return
		}
		if err != nil {
			log.Printf("⚠️ Interact failed on card %s: %v", action.CardID, err)
			c.send(feedServerMessage{Type: "error", Error: "purchase_failed"})
			return
		}
		if inst.Card.Type == models.CardTypeChat && inst.State == services.StateUnlockedIdle {
			privateRoom := services.PrivateRoomID(inst.Card.ID)
			if err := services.GrantRoomEntry(ctx, c.token, privateRoom); err != nil {
				log.Printf("⚠️ Failed to store room grant: %v", err)
			} else {
				c.send(feedServerMessage{Type: "room_granted", RoomID: privateRoom})
			}
		}
		snap := inst.Snapshot(now)
		c.send(feedServerMessage{Type: "snapshot", Snapshot: &snap})

	case "accept_call":
		inst, ok := c.instances[action.CardID]
		if !ok {
			return
		}
		inst.AcceptCall()
		snap := inst.Snapshot(now)
		c.send(feedServerMessage{Type: "snapshot", Snapshot: &snap})

	case "close_session":
		inst, ok := c.instances[action.CardID]
		if !ok {
			return
		}
		inst.CloseSession()
		snap := inst.Snapshot(now)
		c.send(feedServerMessage{Type: "snapshot", Snapshot: &snap})

	case "message":
		text := strings.TrimSpace(action.Text)
		if text == "" {
			return
		}
		msg := &models.Message{
			RoomID:     c.roomID,
			SenderID:   c.session.UserID,
			SenderName: c.session.Username,
			Text:       text,
			CreatedAt:  time.Now().UTC(),
		}
		if err := services.SaveMessage(ctx, msg); err != nil {
			c.send(feedServerMessage{Type: "error", Error: "message_failed"})
			return
		}
		if err := services.PublishFeedEvent(ctx, services.FeedEvent{
			Kind:    services.FeedInsert,
			RoomID:  c.roomID,
			Message: msg,
		}); err != nil {
			log.Printf("⚠️ Failed to broadcast message: %v", err)
		}

	case "ping":
		// Read deadline already refreshed by the pong handler.
	}
}
