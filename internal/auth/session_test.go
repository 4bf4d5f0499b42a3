package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSessionManager_IssueAndParse(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour)
	userID := uuid.New()

	token, expiresAt, err := m.Issue(userID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestSessionManager_TokensAreUnique(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour)
	userID := uuid.New()

	a, _, err := m.Issue(userID)
	require.NoError(t, err)
	b, _, err := m.Issue(userID)
	require.NoError(t, err)

	ca, _ := m.Parse(a)
	cb, _ := m.Parse(b)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestSessionManager_Rejects(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour)
	valid, _, err := m.Issue(uuid.New())
	require.NoError(t, err)

	expired := NewSessionManager(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(uuid.New())
	require.NoError(t, err)

	otherKey, _, err := NewSessionManager("another-secret-another-secret-xx", time.Hour).Issue(uuid.New())
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"expired", old},
		{"wrong key", otherKey},
		{"alg none", unsigned},
		{"tampered", valid[:len(valid)-2] + "xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestClaims_UserID_BadSubject(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}}
	_, err := c.UserID()
	assert.ErrorIs(t, err, ErrInvalidSession)
}
