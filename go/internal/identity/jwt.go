// Package identity resolves who is making a request.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

const (
	issuer         = "draftroom"
	persistTimeout = 5 * time.Second
)

// Identity is the caller behind a verified token.
type Identity struct {
	UserID   string
	Username string
}

// Provider resolves the participant id of an HTTP request.
type Provider interface {
	CurrentIdentity(r *http.Request) (Identity, error)
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 tokens whose subject is the user id.
type JWTManager struct {
	secretKey []byte
	maxAge    time.Duration
	clock     clockwork.Clock
	usernames *UsernameCache
}

func NewJWTManager(secretKey string, maxAge time.Duration, clock clockwork.Clock) *JWTManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTManager{
		secretKey: []byte(secretKey),
		maxAge:    maxAge,
		clock:     clock,
		usernames: NewUsernameCache(),
	}
}

// Usernames returns the cache filled from verified tokens.
func (m *JWTManager) Usernames() *UsernameCache {
	return m.usernames
}

func (m *JWTManager) Generate(userID, username string) (string, error) {
	now := m.clock.Now()
	c := claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(m.secretKey)
}

func (m *JWTManager) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		// Validate the signing method is what we expect (HMAC)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.clock.Now), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	if c.Username != "" {
		m.usernames.Set(c.Subject, c.Username)
	}
	return Identity{UserID: c.Subject, Username: c.Username}, nil
}

// CurrentIdentity reads a bearer token from the Authorization header, or from
// the token query parameter for websocket upgrades.
func (m *JWTManager) CurrentIdentity(r *http.Request) (Identity, error) {
	token := ""
	if h := r.Header.Get("Authorization"); h != "" {
		token, _ = strings.CutPrefix(h, "Bearer ")
	} else {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	return m.Verify(token)
}

// UsernameStore persists the user id to username map across restarts.
type UsernameStore interface {
	SaveUsername(ctx context.Context, userID, username string) error
	LoadUsernames(ctx context.Context) (map[string]string, error)
}

// UsernameCache maps user ids to the last username seen for them. Once
// restored from a UsernameStore, new or changed names are written through.
type UsernameCache struct {
	mu    sync.RWMutex
	names map[string]string
	store UsernameStore
}

func NewUsernameCache() *UsernameCache {
	return &UsernameCache{names: make(map[string]string)}
}

// Restore loads the persisted names and writes later changes to store.
func (c *UsernameCache) Restore(ctx context.Context, store UsernameStore) error {
	names, err := store.LoadUsernames(ctx)
	if err != nil {
		return fmt.Errorf("restore usernames: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, name := range names {
		if _, seen := c.names[id]; !seen {
			c.names[id] = name
		}
	}
	c.store = store

	log.Info().Int("usernames", len(names)).Msg("restored usernames")
	return nil
}

func (c *UsernameCache) Set(userID, username string) {
	c.mu.Lock()
	if current, ok := c.names[userID]; ok && current == username {
		c.mu.Unlock()
		return
	}
	c.names[userID] = username
	store := c.store
	c.mu.Unlock()

	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := store.SaveUsername(ctx, userID, username); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to persist username")
	}
}

func (c *UsernameCache) ResolveUsername(_ context.Context, userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[userID]
	return name, ok
}
