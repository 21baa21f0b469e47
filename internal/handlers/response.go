package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/helpers"
	"github.com/joshua-takyi/tourbook/internal/middleware"
	"github.com/joshua-takyi/tourbook/internal/models"
)

// respondError renders err as {success:false, message, code}. Server-side
// failures are also attached to the context for the error logger.
func respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	meta := apperr.MetadataFor(code)

	message := meta.PublicMessage
	if e := apperr.As(err); e != nil && e.PublicMessage() != "" {
		message = e.PublicMessage()
	}
	if meta.HTTPStatus >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(meta.HTTPStatus, models.ErrorResponse(message, string(code)))
}

func badRequest(c *gin.Context, message string) {
	respondError(c, apperr.Validation(message))
}

// bindJSON decodes the request body and renders a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func currentUser(c *gin.Context) (*helpers.EnhancedClaims, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "No token provided"))
		return nil, false
	}
	return user, true
}

// authorizeEmail lets admins act on any email and everyone else only on
// their own. An empty email resolves to the caller's.
func authorizeEmail(c *gin.Context, email string) (string, bool) {
	user, ok := currentUser(c)
	if !ok {
		return "", false
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return user.Email, true
	}
	if !user.CanAccess(email) {
		respondError(c, apperr.New(apperr.CodeForbidden, "you may only access your own resources"))
		return "", false
	}
	return email, true
}
