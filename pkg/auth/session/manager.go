package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
	redisclient "github.com/angelmondragon/telcobill-backend/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errAccessIDRequired    = errors.New("access id is required")
)

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware needs to reject revoked tokens.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager keys one refresh session per access token id (the JWT jti). Only a
// hash of the refresh token is stored, bound to the customer it was issued to.
type Manager struct {
	store sessionStore
	ttl   time.Duration
	now   func() time.Time
}

type record struct {
	CustomerID uuid.UUID `json:"customer_id"`
	TokenHash  string    `json:"token_hash"`
	IssuedAt   time.Time `json:"issued_at"`
}

func (r record) matches(customerID uuid.UUID, token string) bool {
	sum := hashToken(token)
	return r.CustomerID == customerID && subtle.ConstantTimeCompare([]byte(r.TokenHash), []byte(sum)) == 1
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	refresh := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case refresh <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case refresh <= access:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", refresh, access)
	}
	return &Manager{store: client, ttl: refresh, now: time.Now}, nil
}

// Generate opens a session for a freshly minted access id and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, accessID string, customerID uuid.UUID) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errAccessIDRequired
	}
	if customerID == uuid.Nil {
		return "", errors.New("customer id is required")
	}
	return m.open(ctx, accessID, customerID)
}

func (m *Manager) open(ctx context.Context, accessID string, customerID uuid.UUID) (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	raw, err := json.Marshal(record{CustomerID: customerID, TokenHash: hashToken(token), IssuedAt: m.now().UTC()})
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(raw), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

func (m *Manager) load(ctx context.Context, key string) (record, error) {
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, redislib.Nil) {
		return record{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return record{}, err
	}
	var rec record
	if json.Unmarshal([]byte(raw), &rec) != nil || rec.CustomerID == uuid.Nil || rec.TokenHash == "" {
		return record{}, ErrInvalidRefreshToken
	}
	return rec, nil
}

// Rotate trades a refresh token for a new access id and refresh token. A
// token that does not match, or belongs to another customer, leaves the
// session intact. Two concurrent rotations of the same token cannot both win.
func (m *Manager) Rotate(ctx context.Context, oldAccessID string, customerID uuid.UUID, provided string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" || customerID == uuid.Nil {
		return "", "", ErrInvalidRefreshToken
	}

	key := m.store.AccessSessionKey(oldAccessID)
	rec, err := m.load(ctx, key)
	if err != nil {
		return "", "", err
	}
	if !rec.matches(customerID, provided) {
		return "", "", ErrInvalidRefreshToken
	}

	if _, err := m.store.GetDel(ctx, key); err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", "", ErrInvalidRefreshToken
		}
		return "", "", err
	}

	newAccessID := NewAccessID()
	token, err := m.open(ctx, newAccessID, customerID)
	if err != nil {
		return "", "", err
	}
	return newAccessID, token, nil
}

// Revoke ends the session, which also invalidates its access token.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errAccessIDRequired
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redislib.Nil):
		return false, nil
	default:
		return false, err
	}
}

// NewAccessID produces the JWT jti, which doubles as the session key.
func NewAccessID() string {
	return uuid.NewString()
}
