package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"realtime_go/internal/service"
)

func handleListNotifications(fanout *service.NotificationFanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		notifs, err := fanout.List(r.Context(), user.ID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, notifs)
	}
}

func handleUnreadCount(fanout *service.NotificationFanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		count, err := fanout.UnreadCount(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
	}
}

func handleMarkNotificationRead(fanout *service.NotificationFanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		id, err := notificationIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid notification id"})
			return
		}
		if err := fanout.MarkRead(r.Context(), user.ID, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMarkAllNotificationsRead(fanout *service.NotificationFanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := fanout.MarkAllRead(r.Context(), user.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteNotification(fanout *service.NotificationFanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		id, err := notificationIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid notification id"})
			return
		}
		if err := fanout.Delete(r.Context(), user.ID, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func notificationIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "notificationID"), 10, 64)
}
