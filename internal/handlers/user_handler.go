package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/middleware"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/services"
)

// CookieOptions controls the access_token cookie set on login.
type CookieOptions struct {
	Secure bool
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Register(u *services.UserService, cookies CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}

		res, err := u.Register(c.Request.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		setAccessToken(c, res, cookies)
		c.JSON(http.StatusCreated, res)
	}
}

func Login(u *services.UserService, cookies CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}

		res, err := u.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		setAccessToken(c, res, cookies)
		c.JSON(http.StatusOK, res)
	}
}

// Logout clears the auth cookie. Bearer tokens stay valid until they expire.
func Logout(cookies CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", cookies.Secure, true)
		c.JSON(http.StatusOK, models.MessageResponse{Message: "Logged out successfully"})
	}
}

func Profile(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := helpers.CurrentUser(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}
		profile, err := u.Profile(c.Request.Context(), user.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

func setAccessToken(c *gin.Context, res *models.AuthResponse, cookies CookieOptions) {
	if res.Token == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, res.Token, res.ExpiresIn, "/", "", cookies.Secure, true)
}
