package middleware

import "github.com/gin-gonic/gin"

// ContextInstitutionKey is the gin context key holding the resolved institution id.
const ContextInstitutionKey = "institution_id"

// Institution selects the caller's workspace: the token's institution claim, else fallback.
func Institution(fallback string) gin.HandlerFunc {
	return func(c *gin.Context) {
		institution := fallback
		if claims := Claims(c); claims != nil && claims.InstitutionID != "" {
			institution = claims.InstitutionID
		}
		c.Set(ContextInstitutionKey, institution)
		c.Next()
	}
}
