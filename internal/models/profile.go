package models

import (
	"strings"

	"github.com/giftlist/backend/internal/validation"
)

// ProfileUpdateRequest edits the fields shared by the identity provider and
// the UserDetail mirror. Nil fields are left unchanged.
type ProfileUpdateRequest struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

// Validate checks the request against the caller's current display name.
func (r *ProfileUpdateRequest) Validate(currentDisplayName string) map[string]string {
	errors := make(map[string]string)

	if r.DisplayName == nil && r.PhotoURL == nil {
		errors["profile"] = "Nothing to update"
		return errors
	}
	if r.DisplayName != nil {
		name := strings.TrimSpace(*r.DisplayName)
		r.DisplayName = &name
		if !validation.ValidateDisplayName(name, currentDisplayName) {
			errors["displayName"] = "Please enter a display name of at most 60 characters"
		}
	}
	if r.PhotoURL != nil {
		url := strings.TrimSpace(*r.PhotoURL)
		r.PhotoURL = &url
		if !validation.ValidatePhotoURL(url) {
			errors["photoURL"] = "Please enter a valid photo URL"
		}
	}

	return errors
}

type FavoriteGroupRequest struct {
	GroupID string `json:"groupId"`
}

// PhotoUploadResponse is returned after a moderated profile photo upload.
type PhotoUploadResponse struct {
	PhotoURL string `json:"photoURL"`
}
