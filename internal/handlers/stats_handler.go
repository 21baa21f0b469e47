package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/services"
)

func CustomerDashboard(s *services.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, ok := authorizeEmail(c, c.Query("email"))
		if !ok {
			return
		}
		dashboard, err := s.CustomerDashboard(c.Request.Context(), email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(dashboard, "Dashboard retrieved successfully"))
	}
}

func AdminStats(s *services.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := s.AdminStats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(stats, "Stats retrieved successfully"))
	}
}

func AdminBookingsChart(s *services.StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		months, err := s.MonthlyBookings(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(months, "Monthly bookings retrieved successfully"))
	}
}
