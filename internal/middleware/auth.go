package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"commissionledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the "role" claim of admin tokens.
const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	// RoleService is held by the booking platform that records commissions.
	RoleService = "service"
)

var jwtSecret []byte

// SetJWTSecret installs the HMAC key used to verify tokens. Without it the
// JWT_SECRET environment variable is read on each request.
func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func GetJWTSecret() []byte {
	if len(jwtSecret) > 0 {
		return jwtSecret
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only
	}
	return []byte(secret)
}

// bearerToken reads the token from the access_token cookie or the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token, true
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		response.Abort(c, http.StatusUnauthorized, "Authorization is missing")
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		response.Abort(c, http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'")
		return "", false
	}
	return parts[1], true
}

// RequireRole Middleware validates the JWT token and checks if the user's role exists in the allowedRoles list
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return GetJWTSecret(), nil
		})
		if err != nil || !token.Valid {
			response.Abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		userRole, ok := claims["role"].(string)
		if !ok {
			response.Abort(c, http.StatusForbidden, "Role not found in token")
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if userRole == role {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			response.Abort(c, http.StatusForbidden, "Access denied: insufficient permissions")
			return
		}

		c.Set("userID", claims["sub"])
		c.Set("userRole", userRole)
		c.Next()
	}
}

// CronAuth admits the scheduler with "Authorization: Bearer <secret>". GET requests may
// pass the secret as ?secret= for manual triggering from a browser. An empty secret
// admits nobody.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.Abort(c, http.StatusUnauthorized, "Batch trigger is not configured")
			return
		}

		provided := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if provided == "" && c.Request.Method == http.MethodGet {
			provided = c.Query("secret")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			response.Abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set("userID", "cron")
		c.Next()
	}
}

// Actor names the caller for audit records: the token subject, or "system".
func Actor(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "system"
}
