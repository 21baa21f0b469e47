package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/services"
)

const maxWebhookBody = 64 << 10

func CreatePayment(p *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.CreateIntentInput
		if !bindJSON(c, &in) {
			return
		}
		email, ok := authorizeEmail(c, in.Email)
		if !ok {
			return
		}
		in.Email = email

		intent, err := p.CreatePaymentIntent(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(intent, "Payment intent created"))
	}
}

// SaveTransaction confirms a client-side payment against its booking.
func SaveTransaction(p *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.ConfirmPaymentInput
		if !bindJSON(c, &in) {
			return
		}
		email, ok := authorizeEmail(c, in.Email)
		if !ok {
			return
		}
		in.Email = email

		txn, err := p.ConfirmPayment(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(txn, "Payment recorded successfully"))
	}
}

func GetTransactions(p *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		txns, err := p.ListTransactions(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(txns, "Transactions retrieved successfully"))
	}
}

func GetUserTransactions(p *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, ok := authorizeEmail(c, c.Query("email"))
		if !ok {
			return
		}
		txns, err := p.ListUserTransactions(c.Request.Context(), email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(txns, "Transactions retrieved successfully"))
	}
}

func RefundPayment(p *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID := c.Param("paymentId")
		txn, err := p.GetTransaction(c.Request.Context(), paymentID)
		if err != nil {
			respondError(c, err)
			return
		}
		if _, ok := authorizeEmail(c, txn.Email); !ok {
			return
		}
		refunded, err := p.RefundPayment(c.Request.Context(), paymentID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(refunded, "Payment refunded and booking cancelled"))
	}
}

// StripeWebhook needs the unparsed body for signature verification.
func StripeWebhook(p *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			badRequest(c, "failed to read webhook body")
			return
		}
		if err := p.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
