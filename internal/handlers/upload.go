package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/linkcard/linkcard-backend/internal/services"
)

// Media is the shared Cloudinary client, wired in main.
var Media *services.MediaStorage

// maxUploadSize bounds card media and avatar uploads (32 MB).
const maxUploadSize = 32 << 20

// UploadMedia accepts a multipart upload of card media (image, audio or
// video, uploaded or captured in the browser) and returns its public URL.
func UploadMedia(w http.ResponseWriter, r *http.Request) {
	if Media == nil {
		http.Error(w, "Media uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	session := requireSession(w, r)
	if session == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "File too large or malformed form", http.StatusBadRequest)
		return
	}

	_, fileHeader, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}

	url, err := Media.UploadFileFromHeader(r.Context(), fileHeader, "linkcard/media")
	if err != nil {
		log.Printf("⚠️ Media upload failed: %v", err)
		http.Error(w, "Upload failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"url":     url,
	})
}

// UploadProfilePhoto stores a new avatar and saves its URL on the profile.
func UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	if Media == nil {
		http.Error(w, "Media uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	session := requireSession(w, r)
	if session == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "File too large or malformed form", http.StatusBadRequest)
		return
	}

	_, fileHeader, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}

	url, err := Media.UploadFileFromHeader(r.Context(), fileHeader, "linkcard/avatars")
	if err != nil {
		log.Printf("⚠️ Avatar upload failed: %v", err)
		http.Error(w, "Upload failed", http.StatusInternalServerError)
		return
	}

	if err := services.SaveProfilePhoto(r.Context(), session.UserID, url); err != nil {
		http.Error(w, "Failed to save profile photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"url":     url,
	})
}
