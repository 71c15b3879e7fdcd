package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"travelmate/internal/config"
	"travelmate/internal/domain"
	"travelmate/internal/service"

	_ "travelmate/docs"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Deps are the components the router exposes over HTTP.
type Deps struct {
	Config        *config.Config
	Auth          domain.Authenticator
	Messages      *service.MessageService
	Conversations *service.ConversationService
	Notifications *service.NotificationService
	Dispatcher    *service.Dispatcher
	Presence      *service.PresenceService
	Files         AttachmentStore
	Gateway       http.Handler
	Log           *slog.Logger
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// The websocket lives as long as the client stays, so it skips the
	// request timeout below.
	r.Get("/api/ws", d.Gateway.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"message": cfg.AppName + " messaging API",
				"version": "1.0.0",
				"docs":    "/docs",
			})
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})

		// Swagger documentation
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/docs/doc.json"),
		))

		r.Route("/api", func(r chi.Router) {
			// Service-to-service hooks
			r.Route("/internal", func(r chi.Router) {
				r.Use(InternalTokenMiddleware(cfg.InternalToken))
				r.Post("/notifications", handleDispatchNotification(d.Dispatcher, d.Log))
			})

			// Authenticated routes
			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(d.Auth, d.Log))

				r.Get("/conversations", handleListConversations(d.Conversations, d.Log))
				r.Get("/messages/{otherUserID}", handleListMessages(d.Messages, d.Log))
				r.Post("/send/{receiverID}", handleSendMessage(d.Messages, d.Files, cfg.MaxAttachmentBytes, d.Log))
				r.Put("/read/{senderID}", handleMarkConversationRead(d.Messages, d.Log))

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", handleListNotifications(d.Notifications, d.Log))
					r.Delete("/", handleDeleteAllNotifications(d.Notifications, d.Log))
					r.Get("/unread-count", handleUnreadNotificationCount(d.Notifications, d.Log))
					r.Put("/read-all", handleMarkAllNotificationsRead(d.Notifications, d.Log))
					r.Put("/{id}/read", handleMarkNotificationRead(d.Notifications, d.Log))
					r.Delete("/{id}", handleDeleteNotification(d.Notifications, d.Log))
				})

				r.Get("/presence/online", handleOnlineContacts(d.Presence, d.Log))

				r.Mount("/uploads", UploadRoutes(d.Files, cfg.MaxAttachmentBytes, d.Log))
			})
		})
	})

	return r
}
