package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/giftlist/backend/internal/middleware"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers serves the invitation picker (?allowed=true) and participant
// name lookups (?ids=a,b).
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		users []models.UserDetail
		err   error
	)
	if ids := splitList(q.Get("ids")); len(ids) > 0 {
		users, err = h.users.ListByIDs(r.Context(), ids)
	} else {
		allowed, _ := strconv.ParseBool(q.Get("allowed"))
		users, err = h.users.ListUsers(r.Context(), allowed)
	}
	if err != nil {
		writeError(w, "ListUsers", err, "Error loading users")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(users))
}

// PageUsers is the admin list: ?cursor=&dir=next|prev&limit=.
func (h *UserHandler) PageUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	req := models.PageRequest{
		Cursor:    q.Get("cursor"),
		Direction: models.PageDirection(q.Get("dir")),
		Limit:     limit,
	}

	page, err := h.users.PageUsers(r.Context(), middleware.SessionFrom(r.Context()), req)
	if err != nil {
		writeError(w, "PageUsers", err, "Error loading users")
		return
	}
	writeJSON(w, http.StatusOK, models.NewPageResponse(page))
}

// SetPermission applies {"field": "allow"|"admin", "value": bool}.
func (h *UserHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	update, err := models.ParsePermissionUpdate(body)
	if err != nil {
		if errors.Is(err, models.ErrUnknownPermissionField) {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{
				"field": "Field must be allow or admin",
			}))
			return
		}
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	detail, err := h.users.SetPermission(r.Context(), middleware.SessionFrom(r.Context()), userID, update)
	if err != nil {
		writeError(w, "SetPermission", err, "Error updating user permissions")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(detail))
}
