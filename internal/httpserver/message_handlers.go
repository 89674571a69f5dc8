package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"realtime_go/internal/service"
)

type messageEditRequest struct {
	Content string `json:"content"`
}

func handleEditMessage(router *service.MessageRouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		msgID, err := messageIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}
		var req messageEditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		msg, err := router.EditMessage(r.Context(), user.ID, msgID, req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, router.ToResponse(r.Context(), msg))
	}
}

func handleDeleteMessage(router *service.MessageRouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		msgID, err := messageIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}
		if err := router.DeleteMessage(r.Context(), user.ID, msgID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMarkMessageDelivered(router *service.MessageRouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		msgID, err := messageIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}
		if err := router.MarkDelivered(r.Context(), user.ID, msgID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMarkMessageRead(router *service.MessageRouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		msgID, err := messageIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}
		if err := router.MarkRead(r.Context(), user.ID, msgID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleStarMessage(router *service.MessageRouter, starred bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		msgID, err := messageIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}
		if err := router.StarMessage(r.Context(), user.ID, msgID, starred); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func messageIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
}
