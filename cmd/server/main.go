package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"

	"github.com/giftlist/backend/internal/app"
	"github.com/giftlist/backend/internal/config"
	"github.com/giftlist/backend/internal/handlers"
	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/services"
)

func main() {
	logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("[Server] invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fbApp, err := app.NewFirebaseApp(ctx, cfg)
	if err != nil {
		slog.Error("[Server] firebase init failed", logging.Err(err))
		os.Exit(1)
	}

	store, err := app.OpenStore(ctx, cfg, fbApp)
	if err != nil {
		slog.Error("[Server] store init failed", "driver", cfg.StoreDriver, logging.Err(err))
		os.Exit(1)
	}
	defer store.Close(context.Background())

	identity, err := newIdentity(ctx, cfg, fbApp)
	if err != nil {
		slog.Error("[Server] identity init failed", "driver", cfg.IdentityDriver, logging.Err(err))
		os.Exit(1)
	}

	var cache services.SessionCache
	if cfg.RedisURL != "" {
		redisCache, err := services.NewRedisSessionCache(cfg.RedisURL, cfg.SessionCacheTTL)
		if err != nil {
			slog.Error("[Server] redis init failed", logging.Err(err))
			os.Exit(1)
		}
		defer redisCache.Close()
		cache = redisCache
		slog.Info("[Server] session cache enabled", "ttl", cfg.SessionCacheTTL)
	}

	sessions := services.NewSessionManager(identity, store.Users(), cache, cfg.DefaultPhotoURL)

	authOpts, err := authOptions(ctx, cfg)
	if err != nil {
		slog.Error("[Server] auth options failed", logging.Err(err))
		os.Exit(1)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Sessions:        sessions,
		Auth:            services.NewAuthService(identity, sessions, store.Users(), authOpts...),
		Users:           services.NewUserService(store, sessions),
		Groups:          services.NewGroupService(store),
		Gifts:           services.NewGiftService(store),
		AllowedOrigins:  cfg.AllowedOrigins,
		RequestTimeout:  cfg.RequestTimeout,
		MaxUploadSizeMB: cfg.MaxUploadSizeMB,
	})

	if cfg.SweepInterval > 0 {
		services.NewSweeper(store).Start(ctx, cfg.SweepInterval)
		slog.Info("[Server] orphan sweeper started", "interval", cfg.SweepInterval)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("[Server] giftlist API listening", "addr", cfg.ServerAddress,
			"store", cfg.StoreDriver, "identity", cfg.IdentityDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Server] listen failed", logging.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[Server] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Server] shutdown failed", logging.Err(err))
	}
}

func newIdentity(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (services.IdentityProvider, error) {
	if cfg.IdentityDriver == config.IdentityFirebase {
		client, err := fbApp.Auth(ctx)
		if err != nil {
			return nil, err
		}
		return services.NewFirebaseIdentity(client, cfg.FirebaseAPIKey), nil
	}

	if cfg.DataDir != "" {
		local, err := services.NewPersistentLocalIdentity(cfg.JWTSecret, cfg.JWTExpiration, cfg.PasswordResetURL, cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	slog.Warn("[Server] using local identity without persistence; accounts are lost on restart")
	return services.NewLocalIdentity(cfg.JWTSecret, cfg.JWTExpiration, cfg.PasswordResetURL), nil
}

// authOptions enables the optional collaborators whose settings are present.
func authOptions(ctx context.Context, cfg *config.Config) ([]services.AuthOption, error) {
	var opts []services.AuthOption

	if cfg.SendGridAPIKey != "" {
		opts = append(opts, services.WithMailer(services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFromEmail)))
	}
	if cfg.RecaptchaSecret != "" {
		opts = append(opts, services.WithCaptcha(services.NewRecaptchaVerifier(cfg.RecaptchaSecret, cfg.RecaptchaHosts...)))
	}

	if cfg.FirebaseStorageBucket != "" {
		client, err := gcs.NewClient(ctx, app.ClientOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		detector, err := services.NewVisionSafeSearch(ctx, app.ClientOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		photos := services.NewPhotoService(services.NewGCSBucket(client, cfg.FirebaseStorageBucket), detector)
		opts = append(opts, services.WithPhotos(photos))
		slog.Info("[Server] photo uploads enabled", "bucket", cfg.FirebaseStorageBucket)
	}

	return opts, nil
}
