package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Main leaves Media nil when Cloudinary credentials are absent; the handlers
// must refuse the request instead of dereferencing the missing client.
func TestUploads_RejectedWhenStorageUnconfigured(t *testing.T) {
	prev := Media
	Media = nil
	defer func() { Media = prev }()

	rec := httptest.NewRecorder()
	UploadMedia(rec, httptest.NewRequest(http.MethodPost, "/api/upload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	UploadProfilePhoto(rec, httptest.NewRequest(http.MethodPost, "/api/upload/avatar", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
