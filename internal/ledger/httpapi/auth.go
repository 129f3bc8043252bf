package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimsTenantIDKey = "ledger_tenant_id"
	claimsActorIDKey  = "ledger_actor_id"
)

// Claims is the minimal shape this platform trusts off an already-issued
// bearer token: who is calling (actor_id, for close audit trails) and on
// whose behalf (tenant_id, for every governance and lookup query). There
// is no login or token-issuance flow here, tokens are minted upstream by
// whatever module owns user identity, and this middleware only verifies
// the signature and lifts the two claims it needs.
type Claims struct {
	TenantID string `json:"tenant_id"`
	ActorID  string `json:"actor_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the bearer token against secret (HS256) and
// stores the resolved tenant/actor ids in the gin context. Handlers pull
// them back out with tenantID/actorID below rather than re-parsing the
// token.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or malformed Authorization header")
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			c.Abort()
			return
		}
		if claims.TenantID == "" {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "token is missing tenant_id")
			c.Abort()
			return
		}

		c.Set(claimsTenantIDKey, claims.TenantID)
		c.Set(claimsActorIDKey, claims.ActorID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	v, _ := c.Get(claimsTenantIDKey)
	s, _ := v.(string)
	return s
}

func actorID(c *gin.Context) string {
	v, _ := c.Get(claimsActorIDKey)
	s, _ := v.(string)
	return s
}
