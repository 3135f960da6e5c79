// Package auth provides the signed session cookie for Glow
package auth

import (
	"fmt"
	"time"

	"github.com/aethra/glow/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie.
const CookieName = "glow_session"

// Claims represents the session token. Theme and accent keep the names the
// dashboard has always stored them under.
type Claims struct {
	UserID int    `json:"user_id,omitempty"`
	Theme  string `json:"crm-theme,omitempty"`
	Accent string `json:"crm-accent,omitempty"`
	jwt.RegisteredClaims
}

// SessionID is the token id, stable for the life of the session.
func (c *Claims) SessionID() string {
	return c.ID
}

// Preferences returns the stored appearance, defaults filled in.
func (c *Claims) Preferences() models.Preferences {
	return models.Preferences{Theme: c.Theme, Accent: c.Accent}.Normalize()
}

// Session is what the cookie carries.
type Session struct {
	ID          string
	UserID      int
	Preferences models.Preferences
}

// NewSession starts a session with a fresh id.
func NewSession(userID int, prefs models.Preferences) Session {
	return Session{ID: uuid.New().String(), UserID: userID, Preferences: prefs.Normalize()}
}

// SessionService signs and verifies session tokens
type SessionService struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
	now       func() time.Time
}

// NewSessionService creates a session service. A zero ttl means seven days.
func NewSessionService(secret string, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionService{
		secretKey: []byte(secret),
		ttl:       ttl,
		issuer:    "glow",
		now:       time.Now,
	}
}

// TTL is how long an issued token stays valid.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for sess.
func (s *SessionService) Issue(sess Session) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	prefs := sess.Preferences.Normalize()

	claims := &Claims{
		UserID: sess.UserID,
		Theme:  prefs.Theme,
		Accent: prefs.Accent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        sess.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates a token and returns its session.
func (s *SessionService) Parse(tokenString string) (Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Session{}, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID() == "" {
		return Session{}, fmt.Errorf("invalid session claims")
	}
	return Session{ID: claims.SessionID(), UserID: claims.UserID, Preferences: claims.Preferences()}, nil
}
