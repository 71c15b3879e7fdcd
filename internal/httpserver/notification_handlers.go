package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"travelmate/internal/service"
)

type countResponse struct {
	Count int `json:"count"`
}

// @Summary      List notifications
// @Description  Newest first. cursor is the ID of the oldest notification already loaded.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        cursor query string false "Notification ID to page back from"
// @Param        limit query int false "Page size (max 200)"
// @Success      200  {array}   domain.Notification
// @Failure      404  {object}  errorResponse
// @Router       /notifications [get]
func handleListNotifications(notes *service.NotificationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageFromQuery(r)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		list, err := notes.List(r.Context(), CurrentUserID(r), page)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// @Summary      Unread notification count
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  countResponse
// @Router       /notifications/unread-count [get]
func handleUnreadNotificationCount(notes *service.NotificationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := notes.UnreadCount(r.Context(), CurrentUserID(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	}
}

// @Summary      Mark a notification read
// @Tags         notifications
// @Security     BearerAuth
// @Param        id path string true "Notification ID"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /notifications/{id}/read [put]
func handleMarkNotificationRead(notes *service.NotificationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := notes.MarkRead(r.Context(), CurrentUserID(r), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary      Mark all notifications read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  countResponse
// @Router       /notifications/read-all [put]
func handleMarkAllNotificationsRead(notes *service.NotificationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := notes.MarkAllRead(r.Context(), CurrentUserID(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	}
}

// @Summary      Delete a notification
// @Tags         notifications
// @Security     BearerAuth
// @Param        id path string true "Notification ID"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /notifications/{id} [delete]
func handleDeleteNotification(notes *service.NotificationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := notes.Delete(r.Context(), CurrentUserID(r), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary      Delete all notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  countResponse
// @Router       /notifications [delete]
func handleDeleteAllNotifications(notes *service.NotificationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := notes.DeleteAll(r.Context(), CurrentUserID(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	}
}

// @Summary      Dispatch a notification
// @Description  Hook for other platform services (friends, activities, bookings). Persists the notification and pushes it to the recipient's live connections.
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        X-Internal-Token header string true "Shared secret"
// @Param        input body service.NotificationInput true "Notification"
// @Success      201  {object}  domain.Notification
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /internal/notifications [post]
func handleDispatchNotification(d *service.Dispatcher, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.NotificationInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		n, err := d.Notify(r.Context(), in)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	}
}
