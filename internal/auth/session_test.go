package auth

import (
	"testing"
	"time"

	"github.com/aethra/glow/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	svc := NewSessionService("secret", time.Hour)
	sess := NewSession(1, models.Preferences{Theme: models.ThemeDark, Accent: models.AccentBlue})

	token, expires, err := svc.Issue(sess)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	got, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

func TestParse_InvalidPreferencesFallBack(t *testing.T) {
	svc := NewSessionService("secret", time.Hour)
	sess := Session{ID: "abc", Preferences: models.Preferences{Theme: "neon", Accent: "pink"}}

	token, _, err := svc.Issue(sess)
	require.NoError(t, err)
	got, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences(), got.Preferences)
}

func TestParse_Rejects(t *testing.T) {
	svc := NewSessionService("secret", time.Hour)
	token, _, err := svc.Issue(NewSession(1, models.DefaultPreferences()))
	require.NoError(t, err)

	_, err = NewSessionService("other", time.Hour).Parse(token)
	assert.Error(t, err, "wrong key")

	_, err = svc.Parse(token + "x")
	assert.Error(t, err, "tampered")

	_, err = svc.Parse("")
	assert.Error(t, err)

	expired := NewSessionService("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(NewSession(1, models.DefaultPreferences()))
	require.NoError(t, err)
	_, err = svc.Parse(old)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "x", Issuer: "glow"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Parse(unsigned)
	assert.Error(t, err, "alg none")
}

func TestClaimsKeepStorageKeys(t *testing.T) {
	svc := NewSessionService("secret", time.Hour)
	token, _, err := svc.Issue(NewSession(1, models.Preferences{Theme: "light", Accent: "green"}))
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "light", claims["crm-theme"])
	assert.Equal(t, "green", claims["crm-accent"])
}
