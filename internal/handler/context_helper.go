package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/crou-platform/crou-housing-api/internal/middleware"
	"github.com/crou-platform/crou-housing-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// tenantFromContext resolves the tenant scope for the request. Every
// protected route runs behind the JWT middleware so claims are present;
// an empty tenant belongs to SUPERADMIN, which may pass an explicit
// tenant override via query.
func tenantFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	if claims.Role == models.RoleSuperAdmin {
		if override := c.Query("tenantId"); override != "" {
			return override
		}
	}
	return claims.TenantID
}
