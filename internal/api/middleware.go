package api

import (
	"net/http"
	"time"

	"github.com/aethra/glow/internal/auth"
	"github.com/aethra/glow/internal/metrics"
	"github.com/aethra/glow/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	sessionKey      = "session"
	loggerKey       = "logger"
)

// RequestLogger tags each request with an id and logs it once it completes.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)

		reqLogger := logger.With().Str("request_id", id).Logger()
		c.Set(loggerKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		event := reqLogger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = reqLogger.Error()
		case status >= http.StatusBadRequest:
			event = reqLogger.Warn()
		case c.Request.URL.Path == "/api/health" || c.Request.URL.Path == "/metrics":
			event = reqLogger.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}

// requestLogger returns the logger RequestLogger stored on the context.
func requestLogger(c *gin.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(zerolog.Logger); ok {
			return &l
		}
	}
	return fallback
}

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// SessionMiddleware loads the session cookie, starting a new session when it
// is missing or invalid.
func SessionMiddleware(svc *auth.SessionService, defaults models.Preferences, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(auth.CookieName); err == nil {
			if sess, err := svc.Parse(token); err == nil {
				c.Set(sessionKey, sess)
				c.Next()
				return
			}
		}

		sess := auth.NewSession(0, defaults)
		if err := writeSession(c, svc, sess, secure); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "internal server error"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func writeSession(c *gin.Context, svc *auth.SessionService, sess auth.Session, secure bool) error {
	token, _, err := svc.Issue(sess)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(svc.TTL().Seconds()), "/", "", secure, true)
	return nil
}

func sessionFrom(c *gin.Context) auth.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(auth.Session); ok {
			return sess
		}
	}
	return auth.Session{Preferences: models.DefaultPreferences()}
}
