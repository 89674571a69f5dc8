package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"realtime_go/internal/config"
	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
	"realtime_go/internal/security"
	"realtime_go/internal/service"
	"realtime_go/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(
	cfg *config.Config,
	repos *domain.Repositories,
	registry *presence.Registry,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	encryptor *security.Encryptor,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	authSvc := service.NewAuthService(repos.Users, tokenSvc, passwordHasher)
	userSvc := service.NewUserService(repos.Users, registry)
	convSvc := service.NewConversationService(repos)
	fanout := service.NewNotificationFanout(repos.Notifications, registry, cfg.DedupWindow)
	msgRouter := service.NewMessageRouter(repos, fanout, registry, encryptor, cfg.MaxMessageLength, cfg.MessagesPageSize)
	groupSvc := service.NewGroupService(repos, registry)
	relay := service.NewSignalRelay(repos, registry)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Realtime Conversation API",
			"version": "1.0.0",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, repos.Users))

			r.Get("/auth/me", handleMe())

			// Users
			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(userSvc))
				r.Get("/online", handleListOnlineUsers(userSvc))
				r.Get("/{userID}", handleGetUser(userSvc))
			})

			// Conversations and messages
			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", handleCreateDirectConversation(msgRouter))
				r.Get("/", handleListConversations(convSvc))
				r.Get("/{conversationID}", handleGetConversation(convSvc))
				r.Post("/{conversationID}/read", handleMarkConversationRead(msgRouter))
				r.Get("/{conversationID}/messages", handleListMessages(msgRouter))
				r.Post("/{conversationID}/messages", handleCreateMessage(msgRouter))
			})

			// Message mutations and receipts
			r.Route("/messages", func(r chi.Router) {
				r.Put("/{messageID}", handleEditMessage(msgRouter))
				r.Delete("/{messageID}", handleDeleteMessage(msgRouter))
				r.Post("/{messageID}/delivered", handleMarkMessageDelivered(msgRouter))
				r.Post("/{messageID}/read", handleMarkMessageRead(msgRouter))
				r.Post("/{messageID}/star", handleStarMessage(msgRouter, true))
				r.Delete("/{messageID}/star", handleStarMessage(msgRouter, false))
			})

			// Group management
			r.Route("/groups", func(r chi.Router) {
				r.Post("/", handleCreateGroup(groupSvc))
				r.Delete("/{groupID}", handleDeleteGroup(groupSvc))
				r.Get("/{groupID}/members", handleListGroupMembers(groupSvc))
				r.Post("/{groupID}/members", handleAddMember(groupSvc))
				r.Delete("/{groupID}/members/{userID}", handleRemoveMember(groupSvc))
				r.Post("/{groupID}/members/{userID}/promote", handlePromoteMember(groupSvc))
				r.Post("/{groupID}/members/{userID}/demote", handleDemoteMember(groupSvc))
			})

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", handleListNotifications(fanout))
				r.Get("/unread-count", handleUnreadCount(fanout))
				r.Post("/read-all", handleMarkAllNotificationsRead(fanout))
				r.Post("/{notificationID}/read", handleMarkNotificationRead(fanout))
				r.Delete("/{notificationID}", handleDeleteNotification(fanout))
			})
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(registry, tokenSvc, repos.Users, msgRouter, relay, cfg.CORSOrigins))

	return r
}
