package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/helpers"
)

// GoogleAuth starts a Google sign-in through Supabase Auth. Only registered when
// Supabase is the identity provider.
func GoogleAuth(supabaseURL, frontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		redirectTo := c.Query("redirect_to")
		// only send the browser back to our own frontend
		if redirectTo == "" || !strings.HasPrefix(redirectTo, frontendURL+"/") {
			redirectTo = frontendURL + "/auth/callback"
		}
		c.Redirect(http.StatusTemporaryRedirect, helpers.SupabaseAuthorizeURL(supabaseURL, "google", redirectTo))
	}
}

// GoogleAuthCallback forwards provider errors to the frontend sign-in page. Supabase
// returns tokens in the URL fragment, which only the browser can read.
func GoogleAuthCallback(frontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if providerErr := c.Query("error"); providerErr != "" {
			q := url.Values{}
			q.Set("error", providerErr)
			q.Set("error_description", c.Query("error_description"))
			c.Redirect(http.StatusTemporaryRedirect, frontendURL+"/auth/signin?"+q.Encode())
			return
		}
		c.Redirect(http.StatusTemporaryRedirect, frontendURL+"/auth/callback")
	}
}
