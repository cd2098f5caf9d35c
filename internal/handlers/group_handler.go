package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/metrics"
	"github.com/giftlist/backend/internal/middleware"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/services"
)

const streamKeepAlive = 25 * time.Second

type GroupHandler struct {
	groups *services.GroupService
}

func NewGroupHandler(groups *services.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// giftQuery reads the gift list filters: q, user, status, sort and dir.
func giftQuery(r *http.Request) models.GiftQuery {
	q := r.URL.Query()
	return models.GiftQuery{
		Search: strings.TrimSpace(q.Get("q")),
		UserID: q.Get("user"),
		Status: models.GiftStatus(q.Get("status")),
		Sort:   q.Get("sort"),
		Desc:   strings.EqualFold(q.Get("dir"), "desc"),
	}
}

func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groups, err := h.groups.GetUserGroups(r.Context(), sess.UID())
	if err != nil {
		writeError(w, "ListGroups", err, "Error loading groups")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(groups))
}

func (h *GroupHandler) ListJoinable(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groups, err := h.groups.GetJoinableGroups(r.Context(), sess.UID())
	if err != nil {
		writeError(w, "ListJoinable", err, "Error loading groups")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(groups))
}

func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var req models.CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	summary, err := h.groups.CreateGroup(r.Context(), sess.Identity, req)
	if err != nil {
		writeError(w, "CreateGroup", err, "Error creating group")
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(summary))
}

func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")

	view, err := h.groups.ViewGroup(r.Context(), sess.UID(), groupID, giftQuery(r))
	if err != nil {
		writeError(w, "GetGroup", err, "Error loading group")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(view))
}

func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")

	var req models.GroupUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	view, err := h.groups.UpdateGroup(r.Context(), sess.UID(), groupID, req)
	if err != nil {
		writeError(w, "UpdateGroup", err, "Error updating group information")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(view))
}

func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")

	if err := h.groups.DeleteGroup(r.Context(), sess.UID(), groupID); err != nil {
		writeError(w, "DeleteGroup", err, "Error deleting group")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Group deleted"}))
}

func (h *GroupHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")

	var req models.JoinGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validated(w, req.Validate()) {
		return
	}

	summary, err := h.groups.JoinGroup(r.Context(), sess.Identity, groupID, req.Code)
	if err != nil {
		writeError(w, "JoinGroup", err, "Error joining group")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(summary))
}

func (h *GroupHandler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")

	if err := h.groups.LeaveGroup(r.Context(), sess.UID(), groupID); err != nil {
		writeError(w, "LeaveGroup", err, "Error leaving group")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "You left the group"}))
}

func (h *GroupHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	groupID := chi.URLParam(r, "groupId")
	userID := chi.URLParam(r, "userId")

	if err := h.groups.RemoveMember(r.Context(), sess.UID(), groupID, userID); err != nil {
		writeError(w, "RemoveParticipant", err, "Error removing participant")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Participant removed"}))
}

// Stream pushes the viewer's member groups as Server-Sent Events. Every
// event carries the full list.
func (h *GroupHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Streaming unsupported"))
		return
	}

	updates, err := h.groups.WatchUserGroups(r.Context(), sess.UID())
	if err != nil {
		writeError(w, "StreamGroups", err, "Error loading groups")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.GroupStreams.Inc()
	defer metrics.GroupStreams.Dec()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case groups, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(groups)
			if err != nil {
				slog.Error("[StreamGroups] encode", "user_id", sess.UID(), logging.Err(err))
				return
			}
			fmt.Fprintf(w, "event: groups\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
