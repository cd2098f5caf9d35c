package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StoreMemory    = "memory"

	IdentityFirebase = "firebase"
	IdentityLocal    = "local"
)

type Config struct {
	ServerAddress  string
	AllowedOrigins []string
	RequestTimeout time.Duration

	StoreDriver string
	DataDir     string
	MongoURI    string
	MongoDB     string

	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	FirebaseAPIKey          string
	FirebaseStorageBucket   string

	IdentityDriver string
	JWTSecret      string
	JWTExpiration  time.Duration

	RedisURL        string
	SessionCacheTTL time.Duration

	SendGridAPIKey   string
	MailFromEmail    string
	PasswordResetURL string
	RecaptchaSecret  string
	RecaptchaHosts   []string

	DefaultPhotoURL string
	MaxUploadSizeMB int64
	SweepInterval   time.Duration
}

func Load() *Config {
	return &Config{
		ServerAddress:  getEnv("SERVER_ADDRESS", ":8080"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DataDir:     getEnv("DATA_DIR", ""),
		MongoURI:    getEnv("MONGO_URI", ""),
		MongoDB:     getEnv("MONGO_DB", "giftlist"),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		FirebaseAPIKey:          getEnv("FIREBASE_API_KEY", ""),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),

		IdentityDriver: strings.ToLower(getEnv("IDENTITY_DRIVER", IdentityLocal)),
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiration:  getEnvDuration("JWT_EXPIRATION", 24*time.Hour),

		RedisURL:        getEnv("REDIS_URL", ""),
		SessionCacheTTL: getEnvDuration("SESSION_CACHE_TTL", 5*time.Minute),

		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		MailFromEmail:    getEnv("MAIL_FROM_EMAIL", ""),
		PasswordResetURL: getEnv("PASSWORD_RESET_URL", ""),
		RecaptchaSecret:  getEnv("RECAPTCHA_SECRET", ""),
		RecaptchaHosts:   getEnvList("RECAPTCHA_HOSTNAMES", nil),

		DefaultPhotoURL: getEnv("DEFAULT_PHOTO_URL", "https://st.depositphotos.com/1779253/5140/v/600/depositphotos_51405259-stock-illustration-male-avatar-profile-picture-use.jpg"),
		MaxUploadSizeMB: int64(getEnvInt("MAX_UPLOAD_SIZE_MB", 5)),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 15*time.Minute),
	}
}

// Validate checks the settings each selected driver depends on.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	case StoreFirestore:
		if c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for the firestore store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.IdentityDriver {
	case IdentityLocal:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required for the local identity provider"))
		}
	case IdentityFirebase:
		if c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for firebase identity"))
		}
		if c.FirebaseAPIKey == "" {
			errs = append(errs, errors.New("FIREBASE_API_KEY is required for firebase identity"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_DRIVER %q", c.IdentityDriver))
	}

	if c.SendGridAPIKey != "" && c.MailFromEmail == "" {
		errs = append(errs, errors.New("MAIL_FROM_EMAIL is required when SENDGRID_API_KEY is set"))
	}

	return errors.Join(errs...)
}

// NeedsFirebase reports whether a Firebase app has to be initialized.
func (c *Config) NeedsFirebase() bool {
	return c.StoreDriver == StoreFirestore || c.IdentityDriver == IdentityFirebase || c.FirebaseStorageBucket != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
