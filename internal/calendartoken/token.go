// Package calendartoken signs and verifies calendar subscription tokens.
// A token pins the group, anchor week, cohort selection and language of a
// feed so the subscription URL needs no other parameters.
package calendartoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// DefaultLifetime is how long a token stays valid after signing.
const DefaultLifetime = 180 * 24 * time.Hour

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid calendar token")

// ErrNoSecret is returned when the manager has no signing secret.
var ErrNoSecret = errors.New("calendar token secret not configured")

// Claims is the token payload.
type Claims struct {
	Group   string             `json:"g"`
	Week    string             `json:"w"`
	Cohorts []string           `json:"c"`
	Lang    timetable.Language `json:"l,omitempty"`
	jwt.RegisteredClaims
}

// Language returns the feed language, defaulting to Russian.
func (c *Claims) Language() timetable.Language {
	if c.Lang == timetable.LangDE {
		return timetable.LangDE
	}
	return timetable.LangRU
}

// Manager issues and checks HS256 tokens.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewManager creates a Manager. lifetime 0 means DefaultLifetime.
func NewManager(secret string, lifetime time.Duration) *Manager {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Manager{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Enabled reports whether a signing secret is configured.
func (m *Manager) Enabled() bool {
	return len(m.secret) > 0
}

// Sign returns a signed token for claims. The expiry is set from the
// manager's lifetime unless claims already carry one.
func (m *Manager) Sign(claims Claims) (string, error) {
	if !m.Enabled() {
		return "", ErrNoSecret
	}
	if claims.Cohorts == nil {
		claims.Cohorts = []string{}
	}
	if claims.Lang == "" {
		claims.Lang = timetable.LangRU
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(m.now().Add(m.lifetime))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and checks signature, expiry and payload.
// Every failure wraps ErrInvalidToken.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	if !m.Enabled() {
		return nil, ErrNoSecret
	}
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Group == "" || claims.Week == "" || claims.Cohorts == nil {
		return nil, fmt.Errorf("%w: incomplete payload", ErrInvalidToken)
	}
	if claims.Lang != "" && claims.Lang != timetable.LangRU && claims.Lang != timetable.LangDE {
		return nil, fmt.Errorf("%w: unsupported language %q", ErrInvalidToken, claims.Lang)
	}
	return claims, nil
}
