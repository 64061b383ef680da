package helpers

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserKey is the gin context key holding the authenticated *AuthUser.
const ContextUserKey = "user"

// Claims covers both locally issued tokens and Supabase access tokens; the user id is
// the registered subject in both.
type Claims struct {
	Email        string                 `json:"email,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Role         string                 `json:"role,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// DisplayName prefers the explicit name claim, then Supabase user metadata.
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	for _, key := range []string{"name", "full_name"} {
		if v, ok := c.UserMetadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// AuthUser is the caller identity resolved by the auth middleware.
type AuthUser struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// CurrentUser returns the authenticated caller stored on the request, if any.
func CurrentUser(c *gin.Context) (*AuthUser, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*AuthUser)
	if !ok || user == nil || user.UserID == "" {
		return nil, false
	}
	return user, true
}
