package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linkcard/linkcard-backend/internal/models"
	"github.com/linkcard/linkcard-backend/internal/services"
)

// Transactor is shared by the card handlers and the websocket gateway.
// Wired in main before the router starts.
var Transactor *services.Transactor

// CreateCard stores a new card owned by the caller.
func CreateCard(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var card models.Card
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if card.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}
	if !card.Type.Valid() {
		http.Error(w, "Unknown card type", http.StatusBadRequest)
		return
	}

	card.ID = ""
	card.CreatedAt = 0
	if err := services.CreateCard(r.Context(), session.UserID, &card); err != nil {
		log.Printf("⚠️ Failed to create card: %v", err)
		http.Error(w, "Failed to create card", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Card created",
		"card":    card,
	})
}

// ListMyCards returns the caller's gallery.
func ListMyCards(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	cards, err := services.ListCardsByCreator(r.Context(), session.UserID)
	if err != nil {
		http.Error(w, "Failed to load cards", http.StatusInternalServerError)
		return
	}
	if cards == nil {
		cards = []models.Card{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"cards":   cards,
	})
}

// GetCard returns one card by id.
func GetCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")

	card, err := services.GetCard(r.Context(), cardID)
	if errors.Is(err, services.ErrCardNotFound) {
		http.Error(w, "Card not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load card", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"card":    card,
	})
}

// UpdateCard saves an owner's edit and pushes the new payload to every room
// feed carrying the card.
func UpdateCard(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var card models.Card
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	card.ID = chi.URLParam(r, "cardID")

	err := services.UpdateCard(r.Context(), session.UserID, &card)
	switch {
	case errors.Is(err, services.ErrCardNotFound):
		http.Error(w, "Card not found", http.StatusNotFound)
		return
	case errors.Is(err, services.ErrNotCardOwner):
		http.Error(w, "Only the creator can edit a card", http.StatusForbidden)
		return
	case err != nil:
		log.Printf("⚠️ Failed to update card %s: %v", card.ID, err)
		http.Error(w, "Failed to update card", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Card updated",
		"card":    card,
	})
}

// DeleteCard removes an owner's card and its feed messages everywhere.
func DeleteCard(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}
	cardID := chi.URLParam(r, "cardID")

	err := services.DeleteCard(r.Context(), session.UserID, cardID)
	switch {
	case errors.Is(err, services.ErrCardNotFound):
		http.Error(w, "Card not found", http.StatusNotFound)
		return
	case errors.Is(err, services.ErrNotCardOwner):
		http.Error(w, "Only the creator can delete a card", http.StatusForbidden)
		return
	case err != nil:
		log.Printf("⚠️ Failed to delete card %s: %v", cardID, err)
		http.Error(w, "Failed to delete card", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Card deleted",
	})
}

// UnlockCard runs the purchase for the caller. On success for a chat card a
// private-room grant is attached to the session so the websocket gateway lets
// them in.
func UnlockCard(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}
	cardID := chi.URLParam(r, "cardID")

	card, err := services.GetCard(r.Context(), cardID)
	if errors.Is(err, services.ErrCardNotFound) {
		http.Error(w, "Card not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load card", http.StatusInternalServerError)
		return
	}

	if card.IsExpired(time.Now()) {
		http.Error(w, "Card has expired", http.StatusGone)
		return
	}

	ok, err := Transactor.AttemptUnlock(r.Context(), card, session.UserID, session.Username)
	if err != nil {
		log.Printf("⚠️ Unlock failed for card %s: %v", cardID, err)
		http.Error(w, "Purchase failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Insufficient credits",
		})
		return
	}

	response := map[string]interface{}{
		"success": true,
		"message": "Card unlocked",
		"blur":    card.EffectiveBlur(true),
	}
	if card.Type == models.CardTypeChat {
		roomID := services.PrivateRoomID(card.ID)
		if err := services.GrantRoomEntry(r.Context(), bearerToken(r), roomID); err != nil {
			log.Printf("⚠️ Failed to store room grant: %v", err)
			http.Error(w, "Failed to grant room entry", http.StatusInternalServerError)
			return
		}
		response["room_id"] = roomID
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// SalesHistory returns the caller's sale receipts.
func SalesHistory(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	sales, err := services.SalesHistory(r.Context(), session.UserID)
	if err != nil {
		http.Error(w, "Failed to load sales", http.StatusInternalServerError)
		return
	}
	if sales == nil {
		sales = []models.Sale{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"sales":   sales,
	})
}
