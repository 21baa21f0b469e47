package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/services"
)

type createUserRequest struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
	Phone    string `json:"phone"`
}

// CreateUser registers the caller on first sign-in. The email always comes
// from the verified token.
func CreateUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := currentUser(c)
		if !ok {
			return
		}
		var req createUserRequest
		if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
			return
		}
		name := req.Name
		if name == "" {
			name = caller.Name
		}

		user, created, err := u.CreateUser(c.Request.Context(), &models.User{
			Email:    caller.Email,
			Name:     name,
			PhotoURL: req.PhotoURL,
			Phone:    req.Phone,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		if created {
			c.JSON(http.StatusCreated, models.SuccessResponse(user, "User created successfully"))
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "User already exists"))
	}
}

func GetUserInfo(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, ok := authorizeEmail(c, c.Query("email"))
		if !ok {
			return
		}
		user, err := u.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "User retrieved successfully"))
	}
}

func ListUsers(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := u.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(users, "Users retrieved successfully"))
	}
}

func UpdateUserRole(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Role string `json:"role"`
		}
		if !bindJSON(c, &req) {
			return
		}
		user, err := u.UpdateUserRole(c.Request.Context(), c.Param("email"), req.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "User role updated"))
	}
}

func UpdateUserStatus(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status"`
		}
		if !bindJSON(c, &req) {
			return
		}
		user, err := u.UpdateUserStatus(c.Request.Context(), c.Param("email"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "User status updated"))
	}
}
