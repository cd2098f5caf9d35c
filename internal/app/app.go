// Package app builds the backends selected by config for the server and
// sweeper binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/giftlist/backend/internal/config"
	"github.com/giftlist/backend/internal/storage"
)

// ClientOptions carries the service account credentials when they are set
// inline; otherwise Application Default Credentials apply.
func ClientOptions(cfg *config.Config) []option.ClientOption {
	if cfg.FirebaseCredentialsJSON == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON))}
}

// NewFirebaseApp returns nil when no Firebase-backed driver is configured.
func NewFirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	if !cfg.NeedsFirebase() {
		return nil, nil
	}
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.FirebaseProjectID,
		StorageBucket: cfg.FirebaseStorageBucket,
	}, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return fbApp, nil
}

// OpenStore connects the document store named by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreFirestore:
		if fbApp == nil {
			return nil, fmt.Errorf("firestore store needs a firebase app")
		}
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		slog.Info("[Store] using firestore", "project_id", cfg.FirebaseProjectID)
		return storage.NewFirestoreStore(client), nil

	case config.StoreMongo:
		store, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		slog.Info("[Store] using mongo", "db", cfg.MongoDB)
		return store, nil

	default:
		if cfg.DataDir != "" {
			store, err := storage.NewPersistentMemoryStore(cfg.DataDir)
			if err != nil {
				return nil, err
			}
			slog.Info("[Store] using memory store persisted to disk", "data_dir", cfg.DataDir)
			return store, nil
		}
		slog.Warn("[Store] using in-memory store; data is lost on restart")
		return storage.NewMemoryStore(), nil
	}
}
