package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/container"
	"github.com/joshua-takyi/tourbook/internal/handlers"
	"github.com/joshua-takyi/tourbook/internal/middleware"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(c *container.Container) *gin.Engine {
	if c.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     c.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(c.Logger))
	r.Use(middleware.Metrics(c.Metrics))
	r.Use(middleware.ErrorHandler(c.Logger))
	r.Use(middleware.Recovery(c.Logger))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, models.SuccessResponse(gin.H{"status": "OK", "service": "tourbook-api"}, ""))
		})

		api.GET("/get-all-packages", handlers.GetAllPackages(c.PackageService))
		api.GET("/get_limited_packages", handlers.GetLimitedPackages(c.PackageService))
		api.GET("/get-package/:id", handlers.GetPackage(c.PackageService))
		api.GET("/reviews/:packageId", handlers.ListReviews(c.ReviewService))

		// Authenticated by the Stripe-Signature header instead of a bearer token.
		api.POST("/stripe-webhook", handlers.StripeWebhook(c.PaymentService))
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(c.Verifier, c.UserService, c.Logger))
	{
		protected.POST("/create_user", handlers.CreateUser(c.UserService))
		protected.GET("/user-info", handlers.GetUserInfo(c.UserService))

		protected.POST("/book_package", handlers.BookPackage(c.BookingService))
		protected.GET("/get-booking-status", handlers.GetBookingStatus(c.BookingService))
		protected.PUT("/cancel-booking/:bookingId", handlers.CancelBooking(c.BookingService))
		protected.DELETE("/delete_booking", handlers.DeleteBooking(c.BookingService))
		protected.GET("/get-user-bookings", handlers.GetUserBookings(c.BookingService))

		protected.POST("/add-review", handlers.AddReview(c.ReviewService))

		protected.POST("/create-payment", handlers.CreatePayment(c.PaymentService))
		protected.POST("/save-transaction", handlers.SaveTransaction(c.PaymentService))
		protected.GET("/get-user-transactions", handlers.GetUserTransactions(c.PaymentService))
		protected.POST("/refund-payment/:paymentId", handlers.RefundPayment(c.PaymentService))

		protected.GET("/customer-dashboard", handlers.CustomerDashboard(c.StatsService))
	}

	staff := protected.Group("")
	staff.Use(middleware.RequireRole(models.RoleGuide, models.RoleAdmin))
	{
		staff.POST("/add-packages", handlers.AddPackage(c.PackageService))
		staff.PUT("/update_package/:id", handlers.UpdatePackage(c.PackageService))
		staff.PUT("/complete-booking/:bookingId", handlers.CompleteBooking(c.BookingService))
		staff.PUT("/confirm-booking/:bookingId", handlers.ConfirmBooking(c.BookingService))
		staff.GET("/get-all-bookings", handlers.GetAllBookings(c.BookingService))
	}

	admin := protected.Group("")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", handlers.ListUsers(c.UserService))
		admin.PATCH("/users/:email/role", handlers.UpdateUserRole(c.UserService))
		admin.PATCH("/users/:email/status", handlers.UpdateUserStatus(c.UserService))
		admin.DELETE("/delete-package/:id", handlers.DeletePackage(c.PackageService))
		admin.GET("/get-transactions", handlers.GetTransactions(c.PaymentService))
		admin.GET("/admin-stats", handlers.AdminStats(c.StatsService))
		admin.GET("/admin-bookings-chart", handlers.AdminBookingsChart(c.StatsService))
	}

	return r
}
