package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/services"
)

func AddReview(r *services.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.AddReviewInput
		if !bindJSON(c, &in) {
			return
		}
		email, ok := authorizeEmail(c, in.Email)
		if !ok {
			return
		}
		in.Email = email

		result, err := r.AddReview(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(result, "Review added successfully"))
	}
}

func ListReviews(r *services.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		reviews, err := r.ListReviews(c.Request.Context(), c.Param("packageId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(reviews, "Reviews retrieved successfully"))
	}
}
