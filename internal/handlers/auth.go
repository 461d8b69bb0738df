package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/linkcard/linkcard-backend/internal/config"
	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/internal/services"
	"github.com/linkcard/linkcard-backend/pkg/utils"
)

// Signup Request
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signin Request
type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Auth Response
type AuthResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	User    map[string]interface{} `json:"user,omitempty"`
	Token   string                 `json:"token,omitempty"`
}

// bearerToken extracts the session token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// requireSession resolves the caller's session or writes a 401.
func requireSession(w http.ResponseWriter, r *http.Request) *services.Session {
	session, err := services.ValidateSession(r.Context(), bearerToken(r))
	if err != nil {
		http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
		return nil
	}
	return session
}

func profileMap(userID, username string, credits, earnings int, isGuest bool) map[string]interface{} {
	return map[string]interface{}{
		"id":       userID,
		"username": username,
		"credits":  credits,
		"earnings": earnings,
		"is_guest": isGuest,
	}
}

// Signup handles registration. New accounts start with the guest balance so
// signing up is never worse than staying anonymous.
func Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	var existing string
	err := database.PostgresDB.QueryRowContext(r.Context(),
		"SELECT username FROM profiles WHERE LOWER(username) = LOWER($1)", req.Username).Scan(&existing)
	if err == nil {
		http.Error(w, "Username already taken", http.StatusConflict)
		return
	} else if err != sql.ErrNoRows {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	userID := uuid.New()
	startCredits := config.AppConfig.GuestStartCredits
	_, err = database.PostgresDB.ExecContext(r.Context(), `
		INSERT INTO profiles (id, username, password_hash, credits, is_guest)
		VALUES ($1, $2, $3, $4, FALSE)
	`, userID, req.Username, hashedPassword, startCredits)
	if err != nil {
		http.Error(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	token, err := services.CreateSession(r.Context(), services.Session{
		UserID:   userID.String(),
		Username: req.Username,
	})
	if err != nil {
		log.Printf("⚠️ Failed to create session after signup: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{
		Success: true,
		Message: "Account created successfully",
		User:    profileMap(userID.String(), req.Username, startCredits, 0, false),
		Token:   token,
	})
}

// Signin handles login. The guest wallet the caller may have been using is
// discarded, not merged.
func Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var (
		userID       uuid.UUID
		passwordHash string
		credits      int
		earnings     int
	)
	err := database.PostgresDB.QueryRowContext(r.Context(), `
		SELECT id, password_hash, credits, earnings FROM profiles
		WHERE LOWER(username) = LOWER($1) AND is_guest = FALSE
	`, req.Username).Scan(&userID, &passwordHash, &credits, &earnings)
	if err == sql.ErrNoRows {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	} else if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	ok, err := utils.VerifyPassword(req.Password, passwordHash)
	if err != nil || !ok {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	token, err := services.CreateSession(r.Context(), services.Session{
		UserID:   userID.String(),
		Username: req.Username,
	})
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{
		Success: true,
		Message: "Signed in successfully",
		User:    profileMap(userID.String(), req.Username, credits, earnings, false),
		Token:   token,
	})
}

// GuestSession mints an anonymous identity with the starting credit balance.
// Called on first load so a visitor can unlock cards before registering.
func GuestSession(w http.ResponseWriter, r *http.Request) {
	username := fmt.Sprintf("guest-%s", uuid.New().String()[:8])
	profile, err := services.CreateGuestProfile(r.Context(), username, config.AppConfig.GuestStartCredits)
	if err != nil {
		log.Printf("⚠️ Failed to create guest profile: %v", err)
		http.Error(w, "Failed to create guest session", http.StatusInternalServerError)
		return
	}

	token, err := services.CreateSession(r.Context(), services.Session{
		UserID:   profile.ID.String(),
		Username: profile.Username,
		IsGuest:  true,
	})
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{
		Success: true,
		Message: "Guest session created",
		User:    profileMap(profile.ID.String(), profile.Username, profile.Credits, 0, true),
		Token:   token,
	})
}

// Signout invalidates the caller's session token.
func Signout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := services.DeleteSession(r.Context(), token); err != nil {
			log.Printf("⚠️ Failed to delete session: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Signed out",
	})
}

// Me returns the caller's current profile, including live balances.
func Me(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	profile, err := services.GetProfile(r.Context(), session.UserID)
	if err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"user":    profile,
	})
}
