package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arkline/identity-api/internal/security"
	"github.com/arkline/identity-api/pkg/config"
	appErrors "github.com/arkline/identity-api/pkg/errors"
	"github.com/arkline/identity-api/pkg/response"
)

// ContextUserIDKey is the gin context key storing the authenticated subject id.
const ContextUserIDKey = "currentUserID"

var (
	errNoToken          = appErrors.New("NO_TOKEN", http.StatusUnauthorized, "Authentication required")
	errTokenExpired     = appErrors.New("TOKEN_EXPIRED", http.StatusUnauthorized, "Token expired")
	errTokenInvalid     = appErrors.New("INVALID_TOKEN", http.StatusUnauthorized, "Invalid token")
	errInvalidTokenKind = appErrors.New("INVALID_TOKEN_TYPE", http.StatusUnauthorized, "Invalid token type")
)

// Auth gates every request that does not match the public allow-list. It
// validates the access token from its cookie and attaches the subject id to
// the request context. Revocation is never consulted here: only refresh
// tokens are revocable, access tokens are trusted until natural expiry.
func Auth(codec security.TokenCodec, cookieName string, cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicPath(c.Request.URL.Path, cfg) {
			c.Next()
			return
		}

		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			response.Error(c, errNoToken)
			c.Abort()
			return
		}

		payload, err := codec.Decode(token)
		if err != nil {
			if err == security.ErrTokenExpired {
				response.Error(c, errTokenExpired)
			} else {
				response.Error(c, errTokenInvalid)
			}
			c.Abort()
			return
		}

		if payload.Kind != security.TokenKindAccess {
			response.Error(c, errInvalidTokenKind)
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, payload.SubjectID)
		c.Next()
	}
}

// SubjectID returns the authenticated subject id stored by Auth.
func SubjectID(c *gin.Context) string {
	if v, exists := c.Get(ContextUserIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func isPublicPath(path string, cfg config.AuthConfig) bool {
	trimmed := strings.TrimRight(path, "/")
	for _, public := range cfg.PublicPaths {
		if path == public || trimmed == strings.TrimRight(public, "/") {
			return true
		}
	}
	for _, prefix := range cfg.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
