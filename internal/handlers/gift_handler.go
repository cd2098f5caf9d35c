package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giftlist/backend/internal/middleware"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/services"
)

type GiftHandler struct {
	gifts *services.GiftService
}

func NewGiftHandler(gifts *services.GiftService) *GiftHandler {
	return &GiftHandler{gifts: gifts}
}

func (h *GiftHandler) ListGifts(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")

	gifts, err := h.gifts.ListGifts(r.Context(), sess.UID(), groupID, giftQuery(r))
	if err != nil {
		writeError(w, "ListGifts", err, "Error loading gifts")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(gifts))
}

func (h *GiftHandler) ListMyGifts(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")

	gifts, err := h.gifts.ListMyGifts(r.Context(), sess.UID(), groupID)
	if err != nil {
		writeError(w, "ListMyGifts", err, "Error loading gifts")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(gifts))
}

func (h *GiftHandler) CreateGift(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")

	var req models.GiftUpdateOrCreate
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	gift, err := h.gifts.CreateGift(r.Context(), sess.Identity, groupID, req)
	if err != nil {
		writeError(w, "CreateGift", err, "Error creating gift")
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(gift))
}

func (h *GiftHandler) GetGift(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")
	giftID := chi.URLParam(r, "giftId")

	gift, err := h.gifts.GetGift(r.Context(), sess.UID(), groupID, giftID)
	if err != nil {
		writeError(w, "GetGift", err, "Error loading gift")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(gift))
}

func (h *GiftHandler) UpdateGift(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")
	giftID := chi.URLParam(r, "giftId")

	var req models.GiftUpdateOrCreate
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	gift, err := h.gifts.UpdateGift(r.Context(), sess.UID(), groupID, giftID, req)
	if err != nil {
		writeError(w, "UpdateGift", err, "Error updating gift")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(gift))
}

func (h *GiftHandler) DeleteGift(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")
	giftID := chi.URLParam(r, "giftId")

	if err := h.gifts.DeleteGift(r.Context(), sess.UID(), groupID, giftID); err != nil {
		writeError(w, "DeleteGift", err, "Error deleting gift")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Gift deleted"}))
}

func (h *GiftHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")
	giftID := chi.URLParam(r, "giftId")

	var req models.StatusChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	gift, err := h.gifts.ChangeStatus(r.Context(), sess.UID(), groupID, giftID, req.Next())
	if err != nil {
		writeError(w, "ChangeStatus", err, "Error updating gift status")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(gift))
}
