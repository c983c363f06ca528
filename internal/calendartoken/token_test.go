package calendartoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSignAndVerify(t *testing.T) {
	t.Parallel()
	m := NewManager(testSecret, 0)

	token, err := m.Sign(Claims{Group: "1-CS", Week: "05", Cohorts: []string{"D1", "2"}, Lang: timetable.LangDE})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "1-CS", claims.Group)
	assert.Equal(t, "05", claims.Week)
	assert.Equal(t, []string{"D1", "2"}, claims.Cohorts)
	assert.Equal(t, timetable.LangDE, claims.Language())
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(DefaultLifetime), claims.ExpiresAt.Time, time.Minute)
}

func TestSign_Defaults(t *testing.T) {
	t.Parallel()
	m := NewManager(testSecret, time.Hour)

	token, err := m.Sign(Claims{Group: "1-CS", Week: "05"})
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, []string{}, claims.Cohorts)
	assert.Equal(t, timetable.LangRU, claims.Language())
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()
	m := NewManager(testSecret, time.Hour)
	valid, err := m.Sign(Claims{Group: "1-CS", Week: "05"})
	require.NoError(t, err)

	other, err := NewManager("another-secret-another-secret-xx", time.Hour).Sign(Claims{Group: "1-CS", Week: "05"})
	require.NoError(t, err)

	expired := NewManager(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Sign(Claims{Group: "1-CS", Week: "05"})
	require.NoError(t, err)

	forged, err := m.Sign(Claims{Group: "2-TL", Week: "05"})
	require.NoError(t, err)
	validParts := strings.Split(valid, ".")
	tampered := validParts[0] + "." + strings.Split(forged, ".")[1] + "." + validParts[2]

	noGroup, err := m.Sign(Claims{Week: "05"})
	require.NoError(t, err)

	badLang, err := m.Sign(Claims{Group: "1-CS", Week: "05", Lang: "en"})
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Group: "1-CS", Week: "05", Cohorts: []string{},
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"tampered payload", tampered},
		{"wrong secret", other},
		{"expired", expiredToken},
		{"missing group", noGroup},
		{"unsupported language", badLang},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := m.Verify(tt.token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestManager_NoSecret(t *testing.T) {
	t.Parallel()
	m := NewManager("", 0)
	assert.False(t, m.Enabled())

	_, err := m.Sign(Claims{Group: "1-CS", Week: "05"})
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = m.Verify("x.y.z")
	assert.ErrorIs(t, err, ErrNoSecret)
}
