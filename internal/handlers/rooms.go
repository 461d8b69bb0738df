package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linkcard/linkcard-backend/internal/models"
	"github.com/linkcard/linkcard-backend/internal/services"
)

// PostMessageRequest is a feed entry submitted over REST. Either text or an
// embedded card (or both) must be present.
type PostMessageRequest struct {
	Text string       `json:"text"`
	Card *models.Card `json:"card,omitempty"`
}

// RoomAccess reports whether the caller may enter a room and, for a gated
// private room, which chat card unlocks it and at what cost.
func RoomAccess(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}
	roomID := chi.URLParam(r, "roomID")

	response := map[string]interface{}{"success": true, "room_id": roomID}

	if services.IsPrivateRoom(roomID) {
		card, err := services.GetCard(r.Context(), services.GateCardID(roomID))
		if err != nil {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		response["card_id"] = card.ID
		response["credit_cost"] = card.CreditCost
		response["host_id"] = card.CreatorID
	}

	allowed, err := services.CanEnterRoom(r.Context(), bearerToken(r), session, roomID)
	if err != nil {
		http.Error(w, "Failed to check room access", http.StatusInternalServerError)
		return
	}
	response["allowed"] = allowed

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// RoomMessages returns a room's feed ordered oldest first. Private rooms
// require an entry grant or host ownership.
func RoomMessages(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}
	roomID := chi.URLParam(r, "roomID")

	allowed, err := services.CanEnterRoom(r.Context(), bearerToken(r), session, roomID)
	if err != nil {
		http.Error(w, "Failed to check room access", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Unlock the chat card to enter this room", http.StatusForbidden)
		return
	}

	messages, err := services.LoadRoomMessages(r.Context(), roomID)
	if err != nil {
		log.Printf("⚠️ Failed to load messages for room %s: %v", roomID, err)
		http.Error(w, "Failed to load messages", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"messages": messages,
	})
}

// PostMessage appends a feed entry to a room and broadcasts it. Cards may
// only be posted by the room's host.
func PostMessage(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}
	roomID := chi.URLParam(r, "roomID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" && req.Card == nil {
		http.Error(w, "Message needs text or a card", http.StatusBadRequest)
		return
	}

	allowed, err := services.CanEnterRoom(r.Context(), bearerToken(r), session, roomID)
	if err != nil {
		http.Error(w, "Failed to check room access", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Unlock the chat card to enter this room", http.StatusForbidden)
		return
	}

	if req.Card != nil {
		host, err := services.RoomHost(r.Context(), roomID)
		if err != nil || host != session.UserID {
			http.Error(w, "Only the host can post cards", http.StatusForbidden)
			return
		}
		req.Card.CreatorID = session.UserID
		req.Card.Normalize()
	}

	msg := &models.Message{
		RoomID:     roomID,
		SenderID:   session.UserID,
		SenderName: session.Username,
		Text:       req.Text,
		Card:       req.Card,
		CreatedAt:  time.Now().UTC(),
	}
	if err := services.SaveMessage(r.Context(), msg); err != nil {
		log.Printf("⚠️ Failed to save message in room %s: %v", roomID, err)
		http.Error(w, "Failed to save message", http.StatusInternalServerError)
		return
	}

	if err := services.PublishFeedEvent(r.Context(), services.FeedEvent{
		Kind:    services.FeedInsert,
		RoomID:  roomID,
		Message: msg,
	}); err != nil {
		log.Printf("⚠️ Failed to broadcast message %s: %v", msg.ID.Hex(), err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": msg,
	})
}

// DeleteRoomMessage removes one of the caller's own messages (hosts can
// remove any message in their room) and broadcasts the deletion.
func DeleteRoomMessage(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}
	roomID := chi.URLParam(r, "roomID")
	messageID := chi.URLParam(r, "messageID")

	host, err := services.RoomHost(r.Context(), roomID)
	if err != nil {
		http.Error(w, "Failed to resolve room", http.StatusInternalServerError)
		return
	}

	messages, err := services.LoadRoomMessages(r.Context(), roomID)
	if err != nil {
		http.Error(w, "Failed to load messages", http.StatusInternalServerError)
		return
	}
	var owned bool
	for _, m := range messages {
		if m.ID.Hex() == messageID {
			owned = m.SenderID == session.UserID || host == session.UserID
			break
		}
	}
	if !owned {
		http.Error(w, "Not allowed to delete this message", http.StatusForbidden)
		return
	}

	if err := services.DeleteMessage(r.Context(), messageID); err != nil {
		http.Error(w, "Failed to delete message", http.StatusInternalServerError)
		return
	}

	if err := services.PublishFeedEvent(r.Context(), services.FeedEvent{
		Kind:      services.FeedDelete,
		RoomID:    roomID,
		MessageID: messageID,
	}); err != nil {
		log.Printf("⚠️ Failed to broadcast deletion of %s: %v", messageID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Message deleted",
	})
}
