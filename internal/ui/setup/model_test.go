package setup

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://api.rihigo.com"))
	assert.NoError(t, validateURL(" http://localhost:8080 "))

	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("api.rihigo.com"))
	assert.Error(t, validateURL("ftp://api.rihigo.com"))
	assert.Error(t, validateURL("https://"))
}

func TestValidateToken(t *testing.T) {
	m := New("", 80)
	m.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	assert.Error(t, m.validateToken("  "))
	assert.NoError(t, m.validateToken("opaque-token"))

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	assert.EqualError(t, m.validateToken(expired), "token has expired")
}

func TestResultRequiresSubmit(t *testing.T) {
	m := New("https://api.rihigo.com/", 80)
	_, ok := m.Result()
	assert.False(t, ok)

	m.fields.token = " tok "
	m.done = true
	res, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, Result{BaseURL: "https://api.rihigo.com", Token: "tok"}, res)
}
