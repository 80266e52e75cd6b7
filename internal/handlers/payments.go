package handlers

import (
	"net/http"

	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/gin-gonic/gin"
)

type CreateOrderInput struct {
	BookingID uint `json:"bookingId" binding:"required"`
}

// VerifyPaymentInput carries the fields the checkout widget returns.
type VerifyPaymentInput struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
	BookingID uint   `json:"bookingId" binding:"required"`
}

func CreatePaymentOrder(payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateOrderInput
		if !bindJSON(c, &input) {
			return
		}
		order, err := payments.CreateOrder(c.Request.Context(), input.BookingID, currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func VerifyPayment(payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input VerifyPaymentInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := payments.Verify(c.Request.Context(), services.VerifyRequest{
			OrderID:   input.OrderID,
			PaymentID: input.PaymentID,
			Signature: input.Signature,
			BookingID: input.BookingID,
		}, currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Payment verified successfully",
			"payment": result.Payment,
			"booking": result.Booking,
		})
	}
}

func GetPayment(payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := uintParam(c, "bookingId")
		if !ok {
			return
		}
		payment, err := payments.Get(c.Request.Context(), bookingID, currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment": payment})
	}
}
