package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail to parse, are expired, or
// belong to a removed or revoked user.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "stockdash"

// TokenManager signs and verifies session tokens against a Directory.
type TokenManager struct {
	dir    *Directory
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager. secret must be at least 32
// characters for HS256.
func NewTokenManager(dir *Directory, secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{dir: dir, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the session lifetime.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

type sessionClaims struct {
	jwt.RegisteredClaims
	Version int `json:"ver"`
}

// Issue signs a session token for c.
func (m *TokenManager) Issue(c Credential) (string, error) {
	now := m.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Email,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Version: c.TokenVersion,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns the current directory entry of its user.
func (m *TokenManager) Verify(token string) (Credential, error) {
	if token == "" {
		return Credential{}, ErrInvalidToken
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := m.dir.Lookup(claims.Subject)
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s no longer exists", ErrInvalidToken, claims.Subject)
	}
	if c.TokenVersion != claims.Version {
		return Credential{}, fmt.Errorf("%w: session revoked", ErrInvalidToken)
	}
	return c, nil
}
