package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/services"
	"github.com/giftlist/backend/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the request body into v and answers 400 itself when the
// body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return false
	}
	return true
}

func validated(w http.ResponseWriter, errs map[string]string) bool {
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return false
	}
	return true
}

type errorStatus struct {
	err     error
	status  int
	message string
}

// knownErrors maps service errors to the status and message the client sees.
// Anything not listed is logged and answered with the caller's generic
// message and 500.
var knownErrors = []errorStatus{
	{services.ErrUnauthenticated, http.StatusUnauthorized, models.MsgUnauthenticated},
	{services.ErrInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{services.ErrAccessBlocked, http.StatusForbidden, models.MsgAccessBlocked},
	{services.ErrForbidden, http.StatusForbidden, "Admin access required"},
	{services.ErrNotParticipant, http.StatusForbidden, "You are not a participant of this group"},
	{services.ErrNotOwner, http.StatusForbidden, "Only the owner can do this"},
	{services.ErrOwnGift, http.StatusForbidden, "You cannot change the status of your own gift"},
	{services.ErrInvalidCode, http.StatusForbidden, "Invalid group code"},
	{services.ErrRecaptchaFailed, http.StatusForbidden, "reCAPTCHA verification failed"},
	{services.ErrGroupNotFound, http.StatusNotFound, "Group not found"},
	{services.ErrGiftNotFound, http.StatusNotFound, "Gift not found"},
	{services.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{services.ErrOwnerCannotLeave, http.StatusConflict, "The owner cannot leave the group"},
	{services.ErrTransitionNotAllowed, http.StatusConflict, "The gift cannot move further in that direction"},
	{services.ErrStatusConflict, http.StatusConflict, "The gift status changed, reload and try again"},
	{services.ErrEmailExists, http.StatusConflict, "Email already registered"},
	{services.ErrImageRejected, http.StatusUnprocessableEntity, "Image rejected: it violates community guidelines"},
	{services.ErrInvalidImage, http.StatusBadRequest, "Invalid image type. Allowed: JPEG, PNG, GIF, WebP"},
	{services.ErrUnsupported, http.StatusNotImplemented, "Not supported by this server"},
	{storage.ErrInvalidCursor, http.StatusBadRequest, "Invalid page cursor"},
}

// writeError answers err with its mapped status. op tags the log line and
// fallback is the message for unexpected failures.
func writeError(w http.ResponseWriter, op string, err error, fallback string) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
		return
	}
	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			writeJSON(w, k.status, models.NewErrorResponse(k.message))
			return
		}
	}
	slog.Error("["+op+"] failed", logging.Err(err))
	writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse(fallback))
}

func clientIP(r *http.Request) string {
	// Behind a load balancer the first X-Forwarded-For entry is the client.
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
