package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/services"
)

type errorKind struct {
	target  error
	status  int
	code    string
	message string
}

// errorKinds maps service errors onto responses. An empty message echoes the error text.
var errorKinds = []errorKind{
	{services.ErrNotFound, http.StatusNotFound, "not_found", "Event not found"},
	{services.ErrUserNotFound, http.StatusNotFound, "not_found", "User not found"},
	// 401 rather than 403 for compatibility with existing clients
	{services.ErrForbidden, http.StatusUnauthorized, "forbidden", "Not authorized"},
	{services.ErrAlreadyMember, http.StatusBadRequest, "already_member", "Already joined"},
	{services.ErrNotMember, http.StatusBadRequest, "not_member", "Not joined"},
	{services.ErrFull, http.StatusBadRequest, "full", "Event is full"},
	{services.ErrInvalid, http.StatusBadRequest, "invalid", ""},
	{services.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "Not authorized, no token"},
	{services.ErrEmailTaken, http.StatusConflict, "email_taken", "User already exists"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"},
}

// respondError writes the response for a known error kind. Anything else is attached
// to the context for ErrorHandler, which logs it and answers with a generic 500.
func respondError(c *gin.Context, err error) {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.target) {
			message := kind.message
			if message == "" {
				message = err.Error()
			}
			c.AbortWithStatusJSON(kind.status, models.ErrorBody{Message: message, Code: kind.code})
			return
		}
	}
	_ = c.Error(err)
	c.Abort()
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorBody{Message: message, Code: "invalid"})
}
