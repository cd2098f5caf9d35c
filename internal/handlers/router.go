package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appMiddleware "github.com/giftlist/backend/internal/middleware"
	"github.com/giftlist/backend/internal/services"
)

type RouterConfig struct {
	Sessions        *services.SessionManager
	Auth            *services.AuthService
	Users           *services.UserService
	Groups          *services.GroupService
	Gifts           *services.GiftService
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	MaxUploadSizeMB int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth)
	profileHandler := NewProfileHandler(cfg.Auth, cfg.Users, cfg.MaxUploadSizeMB)
	groupHandler := NewGroupHandler(cfg.Groups)
	giftHandler := NewGiftHandler(cfg.Gifts)
	userHandler := NewUserHandler(cfg.Users)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(appMiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Signed-out callers must reach these even with a stale token.
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.OptionalSession(cfg.Sessions))
			r.Use(chiMiddleware.Timeout(timeout))

			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/google", authHandler.LoginWithGoogle)
			r.Post("/auth/password-reset", authHandler.PasswordReset)
		})

		// The event stream outlives any request timeout.
		r.With(appMiddleware.Session(cfg.Sessions), appMiddleware.RequireAccess).Get("/groups/stream", groupHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.Session(cfg.Sessions))
			r.Use(chiMiddleware.Timeout(timeout))

			// Signed in, with or without access.
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.RequireSignedIn)

				r.Get("/auth/session", authHandler.GetSession)
				r.Post("/auth/logout", authHandler.Logout)
				r.Put("/auth/password", authHandler.ChangePassword)

				r.Put("/profile", profileHandler.UpdateProfile)
				r.Post("/profile/photo", profileHandler.UploadPhoto)
			})

			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.RequireAccess)

				r.Put("/profile/favorite-group", profileHandler.SetFavoriteGroup)
				r.Get("/users", userHandler.ListUsers)

				r.Route("/groups", func(r chi.Router) {
					r.Get("/", groupHandler.ListGroups)
					r.Post("/", groupHandler.CreateGroup)
					r.Get("/joinable", groupHandler.ListJoinable)

					r.Route("/{groupId}", func(r chi.Router) {
						r.Get("/", groupHandler.GetGroup)
						r.Put("/", groupHandler.UpdateGroup)
						r.Delete("/", groupHandler.DeleteGroup)
						r.Post("/join", groupHandler.JoinGroup)
						r.Post("/leave", groupHandler.LeaveGroup)
						r.Delete("/participants/{userId}", groupHandler.RemoveParticipant)

						r.Route("/gifts", func(r chi.Router) {
							r.Get("/", giftHandler.ListGifts)
							r.Post("/", giftHandler.CreateGift)
							r.Get("/mine", giftHandler.ListMyGifts)
							r.Get("/{giftId}", giftHandler.GetGift)
							r.Put("/{giftId}", giftHandler.UpdateGift)
							r.Delete("/{giftId}", giftHandler.DeleteGift)
							r.Post("/{giftId}/status", giftHandler.ChangeStatus)
						})
					})
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(appMiddleware.RequireAdmin)

				r.Get("/users", userHandler.PageUsers)
				r.Patch("/users/{userId}", userHandler.SetPermission)
			})
		})
	})

	return r
}
