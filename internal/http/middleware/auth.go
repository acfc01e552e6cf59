// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication and role gating. Tokens
// are HS256 JWTs carrying the subject (user id) and a single role claim.
// Downstream middleware and handlers read the identity via the "userID" and
// "role" context keys.
//
// Design notes:
//   - Authentication and authorization are split: Authenticate() establishes
//     identity, RequireRole() gates a route group on a minimum role.
//   - Roles form a strict hierarchy (user < moderator < supervisor < admin);
//     a supervisor passes every moderator gate.
//   - When no signing secret is configured the middleware falls back to the
//     X-User-ID demo header so local development works without an issuer.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Role names, ordered by privilege.
const (
	RoleUser       = "user"
	RoleModerator  = "moderator"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// roleRank orders roles for hierarchy checks. Unknown roles rank below user.
var roleRank = map[string]int{
	RoleUser:       1,
	RoleModerator:  2,
	RoleSupervisor: 3,
	RoleAdmin:      4,
}

// Context keys set by Authenticate.
const (
	ctxKeyUserID = "userID"
	ctxKeyRole   = "role"
)

// authClaims is the expected JWT payload.
type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate validates the Authorization bearer token and stashes the
// caller's identity and role in the Gin context.
//
// Behavior:
//   - Valid token: sets "userID" (subject) and "role", then continues.
//   - Missing/invalid token with a secret configured: responds 401.
//   - Empty secret (demo mode): identity comes from the X-User-ID header with
//     role "user"; absent header falls through as "anonymous".
func Authenticate(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if secret == "" {
			uid := strings.TrimSpace(c.GetHeader("X-User-ID"))
			if uid == "" {
				uid = "anonymous"
			}
			c.Set(ctxKeyUserID, uid)
			c.Set(ctxKeyRole, RoleUser)
			c.Next()
			return
		}

		raw := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(raw, prefix) {
			abortAuth(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims := &authClaims{}
		tok, err := jwt.ParseWithClaims(strings.TrimPrefix(raw, prefix), claims,
			func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			},
			jwt.WithValidMethods([]string{"HS256"}),
		)
		if err != nil || !tok.Valid || claims.Subject == "" {
			abortAuth(c, http.StatusUnauthorized, "invalid token")
			return
		}

		role := claims.Role
		if _, ok := roleRank[role]; !ok {
			role = RoleUser
		}
		c.Set(ctxKeyUserID, claims.Subject)
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

// RequireRole gates a route on a minimum role. Higher roles always pass.
func RequireRole(min string) gin.HandlerFunc {
	need := roleRank[min]
	return func(c *gin.Context) {
		role, _ := c.Get(ctxKeyRole)
		rs, _ := role.(string)
		if roleRank[rs] < need {
			abortAuth(c, http.StatusForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// RoleFrom returns the authenticated role, or "user" when none is set.
func RoleFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyRole); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return RoleUser
}

func abortAuth(c *gin.Context, status int, msg string) {
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    msg,
	})
}
