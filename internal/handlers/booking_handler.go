package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/services"
)

func BookPackage(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.CreateBookingInput
		if !bindJSON(c, &in) {
			return
		}
		email, ok := authorizeEmail(c, in.Email)
		if !ok {
			return
		}
		in.Email = email

		created, err := b.CreateBooking(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(created, "Booking created successfully"))
	}
}

// GetBookingStatus answers {status:false} when the customer has no booking
// for the package, else {status: <paymentStatus>}.
func GetBookingStatus(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, ok := authorizeEmail(c, c.Query("email"))
		if !ok {
			return
		}
		status, found, err := b.PaymentStatusFor(c.Request.Context(), email, c.Query("packageId"))
		if err != nil {
			respondError(c, err)
			return
		}
		if !found {
			c.JSON(http.StatusOK, gin.H{"status": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

// ownedBooking loads the booking and checks the caller may act on it.
func ownedBooking(c *gin.Context, b *services.BookingService, bookingID string) (*models.Booking, bool) {
	booking, err := b.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if _, ok := authorizeEmail(c, booking.Email); !ok {
		return nil, false
	}
	return booking, true
}

func CancelBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ownedBooking(c, b, c.Param("bookingId")); !ok {
			return
		}
		booking, err := b.CancelBooking(c.Request.Context(), c.Param("bookingId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, "Booking cancelled successfully"))
	}
}

func CompleteBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		booking, err := b.CompleteBooking(c.Request.Context(), c.Param("bookingId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, "Booking marked as completed"))
	}
}

func ConfirmBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		booking, err := b.ConfirmBooking(c.Request.Context(), c.Param("bookingId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(booking, "Booking confirmed"))
	}
}

func DeleteBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			BookingID string `json:"booking_id"`
			PackageID string `json:"package_id"`
		}
		if !bindJSON(c, &req) {
			return
		}
		if req.BookingID == "" {
			badRequest(c, "booking_id is required")
			return
		}
		if _, ok := ownedBooking(c, b, req.BookingID); !ok {
			return
		}
		if err := b.DeleteBooking(c.Request.Context(), req.BookingID, req.PackageID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Booking deleted successfully"))
	}
}

func GetUserBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, ok := authorizeEmail(c, c.Query("userEmail"))
		if !ok {
			return
		}
		bookings, err := b.ListUserBookings(c.Request.Context(), email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(bookings, "Bookings retrieved successfully"))
	}
}

func GetAllBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := b.ListBookings(c.Request.Context(), c.Query("status"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(bookings, "Bookings retrieved successfully"))
	}
}
