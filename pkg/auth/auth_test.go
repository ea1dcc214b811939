package auth

import (
	"testing"
	"time"

	"github.com/edumarket/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		stored   string
		want     bool
	}{
		{name: "plaintext match", password: "s3cret", stored: "s3cret", want: true},
		{name: "plaintext mismatch", password: "s3cret", stored: "other", want: false},
		{name: "bcrypt match", password: "s3cret", stored: hashed, want: true},
		{name: "bcrypt mismatch", password: "nope", stored: hashed, want: false},
		{name: "empty stored", password: "", stored: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPassword(tt.password, tt.stored))
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager(&config.JWTConfig{Secret: "k", Issuer: "edumarket", Expire: 60})

	info, err := m.Issue(7, "Ana", 3, "estudiante")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", info.TokenType)
	assert.Equal(t, int64(60), info.ExpiresIn)

	claims, err := m.Parse(info.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "estudiante", claims.RoleCode)
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager(&config.JWTConfig{Secret: "k", Expire: 60})
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	info, err := m.Issue(1, "Ana", 1, "admin")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.Parse(info.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = m.Parse("garbage")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
