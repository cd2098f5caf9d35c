package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/storage"
)

// LocalIdentity is a self-contained identity provider for development and
// tests: bcrypt password hashes and HS256 ID tokens. Logging out bumps the
// account's token generation, which invalidates every token issued before.
type LocalIdentity struct {
	mu       sync.RWMutex
	accounts map[string]*localAccount // uid -> account
	byEmail  map[string]string        // email -> uid

	jwtSecret     []byte
	jwtExpiration time.Duration
	resetURL      string
	file          *storage.SnapshotFile
}

type localAccount struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoURL"`
	Generation   int    `json:"generation"`
}

type localClaims struct {
	Email      string `json:"email"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

var _ IdentityProvider = (*LocalIdentity)(nil)

func NewLocalIdentity(jwtSecret string, jwtExpiration time.Duration, resetURL string) *LocalIdentity {
	return &LocalIdentity{
		accounts:      make(map[string]*localAccount),
		byEmail:       make(map[string]string),
		jwtSecret:     []byte(jwtSecret),
		jwtExpiration: jwtExpiration,
		resetURL:      resetURL,
	}
}

// NewPersistentLocalIdentity keeps accounts in dataDir/accounts.json.
func NewPersistentLocalIdentity(jwtSecret string, jwtExpiration time.Duration, resetURL, dataDir string) (*LocalIdentity, error) {
	file, err := storage.OpenSnapshotFile(dataDir, "accounts.json")
	if err != nil {
		return nil, err
	}
	l := NewLocalIdentity(jwtSecret, jwtExpiration, resetURL)
	l.file = file

	var accounts []*localAccount
	if err := file.Load(&accounts); err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	for _, a := range accounts {
		l.accounts[a.UID] = a
		l.byEmail[a.Email] = a.UID
	}
	return l, nil
}

// persistLocked must be called with l.mu held.
func (l *LocalIdentity) persistLocked() error {
	if l.file == nil {
		return nil
	}
	accounts := make([]*localAccount, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	return l.file.Save(accounts)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *localAccount) identity() *models.Identity {
	return &models.Identity{
		UID:         a.UID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
	}
}

func (l *LocalIdentity) generateToken(a *localAccount) (*models.AuthTokens, error) {
	now := time.Now()
	claims := localClaims{
		Email:      a.Email,
		Generation: a.Generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.jwtExpiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(l.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &models.AuthTokens{
		IDToken:   signed,
		ExpiresIn: int64(l.jwtExpiration / time.Second),
	}, nil
}

func (l *LocalIdentity) SignUp(ctx context.Context, email, password string) (*models.Identity, *models.AuthTokens, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	email = normalizeEmail(email)
	if _, exists := l.byEmail[email]; exists {
		return nil, nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	a := &localAccount{
		UID:          uuid.New().String(),
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	l.accounts[a.UID] = a
	l.byEmail[email] = a.UID
	if err := l.persistLocked(); err != nil {
		return nil, nil, err
	}

	tokens, err := l.generateToken(a)
	if err != nil {
		return nil, nil, err
	}
	return a.identity(), tokens, nil
}

func (l *LocalIdentity) SignIn(ctx context.Context, email, password string) (*models.Identity, *models.AuthTokens, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	uid, exists := l.byEmail[normalizeEmail(email)]
	if !exists {
		return nil, nil, ErrInvalidCredentials
	}
	a := l.accounts[uid]
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := l.generateToken(a)
	if err != nil {
		return nil, nil, err
	}
	return a.identity(), tokens, nil
}

func (l *LocalIdentity) SignInWithGoogle(ctx context.Context, googleIDToken string) (*models.Identity, *models.AuthTokens, error) {
	return nil, nil, ErrUnsupported
}

func (l *LocalIdentity) VerifyToken(ctx context.Context, idToken string) (*models.Identity, error) {
	var claims localClaims
	token, err := jwt.ParseWithClaims(idToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return l.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[claims.Subject]
	if !ok || a.Generation != claims.Generation {
		return nil, ErrInvalidToken
	}
	return a.identity(), nil
}

func (l *LocalIdentity) GetIdentity(ctx context.Context, uid string) (*models.Identity, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	return a.identity(), nil
}

func (l *LocalIdentity) UpdatePassword(ctx context.Context, uid, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[uid]
	if !ok {
		return ErrUserNotFound
	}
	a.PasswordHash = string(hashedPassword)
	return l.persistLocked()
}

func (l *LocalIdentity) UpdateProfile(ctx context.Context, uid string, displayName, photoURL *string) (*models.Identity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	if displayName != nil {
		a.DisplayName = *displayName
	}
	if photoURL != nil {
		a.PhotoURL = *photoURL
	}
	return a.identity(), l.persistLocked()
}

func (l *LocalIdentity) PasswordResetLink(ctx context.Context, email string) (string, error) {
	l.mu.RLock()
	uid, ok := l.byEmail[normalizeEmail(email)]
	l.mu.RUnlock()
	if !ok {
		return "", ErrUserNotFound
	}

	tokens, err := l.generateToken(&localAccount{UID: uid, Email: normalizeEmail(email), Generation: -1})
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("mode", "resetPassword")
	q.Set("oobCode", tokens.IDToken)
	return l.resetURL + "?" + q.Encode(), nil
}

// SendPasswordReset has no mail transport of its own; the link is logged.
func (l *LocalIdentity) SendPasswordReset(ctx context.Context, email string) error {
	link, err := l.PasswordResetLink(ctx, email)
	if err != nil {
		return err
	}
	slog.Info("[SendPasswordReset] local reset link", "email", email, "link", link)
	return nil
}

func (l *LocalIdentity) RevokeSessions(ctx context.Context, uid string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[uid]
	if !ok {
		return ErrUserNotFound
	}
	a.Generation++
	return l.persistLocked()
}
