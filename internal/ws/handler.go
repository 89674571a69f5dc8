package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
	"realtime_go/internal/security"
	"realtime_go/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// inboundEvent is the envelope every client frame decodes into. Which fields
// matter depends on Type; unknown fields are ignored.
type inboundEvent struct {
	Type           string          `json:"type"`
	ConversationID int64           `json:"conversation_id"`
	RecipientID    *int64          `json:"recipient_id"`
	MessageID      int64           `json:"message_id"`
	TargetUserID   int64           `json:"target_user_id"`
	Content        string          `json:"content"`
	Payload        json.RawMessage `json:"payload"`
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or Sec-WebSocket-Protocol), then dispatches events:
//   - message                -> route to an existing conversation or, with recipient_id, a direct one
//   - mark_read / mark_delivered -> update the read mark for one message
//   - mark_conversation_read -> catch up every unread message in the conversation
//   - edit_message / delete_message -> mutate and fan out to members
//   - typing / call_offer / call_answer / ice_candidate / call_end -> relay to target, never persisted
func MakeHandler(
	registry *presence.Registry,
	tokens *security.TokenService,
	users domain.UserRepository,
	router *service.MessageRouter,
	relay *service.SignalRelay,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			http.Error(w, "invalid token subject", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByUsername(ctx, sub)
		if err != nil || user == nil || !user.IsActive {
			http.Error(w, "user not found or inactive", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sink := newConnSink(conn)
		wasOnline := registry.IsOnline(user.ID)
		registered := registry.Connect(user.ID, sink)
		defer func() {
			registry.Disconnect(registered.ID)
			if err := users.UpdateLastSeen(context.Background(), user.ID); err != nil {
				log.Printf("ws: update last seen for %d: %v", user.ID, err)
			}
			if !registry.IsOnline(user.ID) {
				registry.Broadcast(context.Background(), domain.PresenceEvent{
					Type:     domain.EventUserOffline,
					UserID:   user.ID,
					Username: user.Username,
				})
			}
		}()
		if !wasOnline {
			registry.Broadcast(ctx, domain.PresenceEvent{
				Type:     domain.EventUserOnline,
				UserID:   user.ID,
				Username: user.Username,
			})
		}

		for {
			var ev inboundEvent
			if err := conn.ReadJSON(&ev); err != nil {
				break
			}
			switch ev.Type {

			case "message":
				if ev.Content == "" {
					sendError(sink, "message requires non-empty content")
					continue
				}
				in := service.SendMessageInput{Content: ev.Content, RecipientID: ev.RecipientID}
				if ev.ConversationID != 0 {
					convID := ev.ConversationID
					in.ConversationID = &convID
					in.RecipientID = nil
				}
				if in.ConversationID == nil && in.RecipientID == nil {
					sendError(sink, "message requires conversation_id or recipient_id")
					continue
				}
				if _, err := router.SendMessage(ctx, user.ID, in); err != nil {
					log.Printf("ws: send message: %v", err)
					sendError(sink, "failed to send message")
				}

			case "mark_read":
				if ev.MessageID == 0 {
					continue
				}
				if err := router.MarkRead(ctx, user.ID, ev.MessageID); err != nil {
					log.Printf("ws: mark_read: %v", err)
					sendError(sink, "failed to mark message as read")
				}

			case "mark_delivered":
				if ev.MessageID == 0 {
					continue
				}
				if err := router.MarkDelivered(ctx, user.ID, ev.MessageID); err != nil {
					log.Printf("ws: mark_delivered: %v", err)
					sendError(sink, "failed to mark message as delivered")
				}

			case "mark_conversation_read":
				if ev.ConversationID == 0 {
					continue
				}
				if err := router.MarkConversationRead(ctx, ev.ConversationID, user.ID); err != nil {
					log.Printf("ws: mark_conversation_read: %v", err)
					sendError(sink, "failed to mark conversation as read")
				}

			case "edit_message":
				if ev.MessageID == 0 || ev.Content == "" {
					continue
				}
				if _, err := router.EditMessage(ctx, user.ID, ev.MessageID, ev.Content); err != nil {
					log.Printf("ws: edit_message: %v", err)
					sendError(sink, "failed to edit message")
				}

			case "delete_message":
				if ev.MessageID == 0 {
					continue
				}
				if err := router.DeleteMessage(ctx, user.ID, ev.MessageID); err != nil {
					log.Printf("ws: delete_message: %v", err)
					sendError(sink, "failed to delete message")
				}

			case domain.SignalTyping, domain.SignalCallOffer, domain.SignalCallAnswer,
				domain.SignalICECandidate, domain.SignalCallEnd:
				if ev.TargetUserID == 0 || ev.ConversationID == 0 {
					sendError(sink, "signaling requires target_user_id and conversation_id")
					continue
				}
				if err := relay.Relay(ctx, ev.Type, user.ID, ev.TargetUserID, ev.ConversationID, ev.Payload); err != nil {
					log.Printf("ws: relay %s: %v", ev.Type, err)
					sendError(sink, "not allowed for this conversation")
				}

			default:
				log.Printf("ws: unknown event type %q from user %d", ev.Type, user.ID)
			}
		}
	}
}

func sendError(sink *connSink, msg string) {
	_ = sink.Send(context.Background(), map[string]any{
		"type":    "error",
		"message": msg,
	})
}
