package handlers

import (
	"net/http"

	"github.com/giftlist/backend/internal/middleware"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/services"
)

type ProfileHandler struct {
	auth      *services.AuthService
	users     *services.UserService
	maxSizeMB int64
}

func NewProfileHandler(auth *services.AuthService, users *services.UserService, maxSizeMB int64) *ProfileHandler {
	return &ProfileHandler{auth: auth, users: users, maxSizeMB: maxSizeMB}
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var req models.ProfileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	current := ""
	if sess.Detail != nil {
		current = sess.Detail.DisplayName
	}
	if !validated(w, req.Validate(current)) {
		return
	}

	payload, err := h.auth.UpdateProfile(r.Context(), sess, req)
	if err != nil {
		writeError(w, "UpdateProfile", err, "Error updating profile")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(payload))
}

// UploadPhoto takes a multipart "photo" file, moderates it and makes it the
// profile photo.
func (h *ProfileHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeMB*1024*1024)
	if err := r.ParseMultipartForm(h.maxSizeMB * 1024 * 1024); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("File too large or invalid form data"))
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("No photo file provided"))
		return
	}
	defer file.Close()

	photoURL, err := h.auth.UploadPhoto(r.Context(), sess, file)
	if err != nil {
		writeError(w, "UploadPhoto", err, "Failed to upload photo")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.PhotoUploadResponse{PhotoURL: photoURL}))
}

func (h *ProfileHandler) SetFavoriteGroup(w http.ResponseWriter, r *http.Request) {
	var req models.FavoriteGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	detail, err := h.users.SetFavoriteGroup(r.Context(), middleware.SessionFrom(r.Context()), req.GroupID)
	if err != nil {
		writeError(w, "SetFavoriteGroup", err, "Error saving favorite group")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(detail))
}
