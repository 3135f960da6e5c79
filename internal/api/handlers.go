// Package api contains the HTTP API and dashboard handlers for Glow
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aethra/glow/internal/client"
	"github.com/aethra/glow/internal/engine"
	glowerrors "github.com/aethra/glow/internal/errors"
	"github.com/aethra/glow/internal/query"
	"github.com/gin-gonic/gin"
)

// APIVersion is the only portal API version served.
const APIVersion = "v1"

// Handler serves the portal JSON API
type Handler struct {
	schema  *engine.SchemaEngine
	portal  client.Fallback
	name    string
	builder query.Builder
}

// NewHandler creates a new API handler
func NewHandler(schema *engine.SchemaEngine, portal client.Fallback, portalName string, pageSize int) *Handler {
	return &Handler{
		schema:  schema,
		portal:  portal,
		name:    portalName,
		builder: query.Builder{PageSize: pageSize},
	}
}

// respondError writes err in the standard error shape
func respondError(c *gin.Context, err error) {
	status, body := glowerrors.ToHTTPError(err)
	c.AbortWithStatusJSON(status, body)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// PortalMiddleware rejects unknown API versions and portals
func (h *Handler) PortalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Param("version") != APIVersion {
			respondError(c, glowerrors.NewNotFoundError(fmt.Sprintf("api version '%s'", c.Param("version"))))
			return
		}
		if c.Param("portal") != h.name {
			respondError(c, glowerrors.NewNotFoundError(fmt.Sprintf("portal '%s'", c.Param("portal"))))
			return
		}
		c.Next()
	}
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Health reports liveness and the size of the active schema
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"modules": len(h.schema.Modules()),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resource dispatches the portal resources. A trailing ".json" is accepted
// on every resource.
// GET /api/v1/portals/:portal/:resource
func (h *Handler) Resource(c *gin.Context) {
	resource := strings.TrimSuffix(c.Param("resource"), ".json")
	switch resource {
	case "modules":
		h.Modules(c)
	case "me":
		h.Me(c)
	default:
		h.List(c, resource)
	}
}

// Modules returns the schema with reference options resolved
func (h *Handler) Modules(c *gin.Context) {
	modules, err := h.portal.Modules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": modules})
}

// Me returns the signed-in user
func (h *Handler) Me(c *gin.Context) {
	u, err := h.portal.CurrentUser(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// List returns one page of a module
func (h *Handler) List(c *gin.Context, moduleID string) {
	m, err := h.schema.Module(moduleID)
	if err != nil {
		respondError(c, err)
		return
	}

	values := c.Request.URL.Query()
	for _, key := range []string{query.ParamPage, query.ParamLimit} {
		if v := values.Get(key); v != "" {
			if _, err := strconv.Atoi(v); err != nil {
				respondError(c, glowerrors.NewValidationError(key, fmt.Sprintf("%s must be an integer", key)))
				return
			}
		}
	}

	q := h.builder.Decode(values, m)
	result, err := h.portal.Query(c.Request.Context(), moduleID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
