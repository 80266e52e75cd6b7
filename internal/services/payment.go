package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

type PaymentService struct {
	store    *store.Store
	gateway  Gateway
	keyID    string
	secret   []byte
	currency string
	notifier Notifier
	log      logrus.FieldLogger
}

// OrderDetails is what the client needs to open the gateway checkout.
type OrderDetails struct {
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"keyId"`
	BookingID uint   `json:"bookingId"`
}

type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	BookingID uint
}

type VerifyResult struct {
	Payment *models.Payment `json:"payment"`
	Booking *models.Booking `json:"booking"`
}

func NewPaymentService(s *store.Store, gateway Gateway, keyID, keySecret, currency string, notifier Notifier, log logrus.FieldLogger) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		store:    s,
		gateway:  gateway,
		keyID:    keyID,
		secret:   []byte(keySecret),
		currency: currency,
		notifier: notifier,
		log:      log,
	}
}

// PaymentSignature is hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func PaymentSignature(secret []byte, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *PaymentService) loadBooking(ctx context.Context, bookingID uint) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Booking not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}
	return booking, nil
}

// completedBy returns the stored records when orderID was already completed
// with paymentID.
func (s *PaymentService) completedBy(ctx context.Context, orderID, paymentID string) (*VerifyResult, bool) {
	payment, err := s.store.GetPaymentByOrder(ctx, orderID)
	if err != nil || !payment.IsCompleted() {
		return nil, false
	}
	if payment.GatewayPaymentID == nil || *payment.GatewayPaymentID != paymentID {
		return nil, false
	}
	booking, err := s.store.GetBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, false
	}
	return &VerifyResult{Payment: payment, Booking: booking}, true
}

// CreateOrder registers a gateway order for the booking total and records a
// pending payment against it.
func (s *PaymentService) CreateOrder(ctx context.Context, bookingID, requesterID uint) (*OrderDetails, error) {
	if bookingID == 0 {
		return nil, apperr.Validation("bookingId is required")
	}
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != requesterID {
		return nil, apperr.Authorization("Only the guest who made the booking can pay for it")
	}
	if booking.Status == models.BookingStatusRejected {
		return nil, apperr.Conflict("Booking has been rejected")
	}
	if booking.PaymentStatus != nil && *booking.PaymentStatus == models.PaymentStatusCompleted {
		return nil, apperr.Conflict("Booking is already paid")
	}

	amount := utils.ToMinorUnits(booking.TotalAmount)
	if amount <= 0 {
		return nil, apperr.Validation("Booking amount must be positive")
	}

	order, err := s.gateway.CreateOrder(ctx, amount, s.currency, fmt.Sprintf("booking_%d", booking.ID))
	if err != nil {
		return nil, apperr.Internal("failed to create payment order", err)
	}

	payment := &models.Payment{
		BookingID:      booking.ID,
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       s.currency,
		Status:         models.PaymentStatusPending,
	}
	switch err := s.store.SavePendingPayment(ctx, payment); {
	case errors.Is(err, store.ErrStateChanged):
		return nil, apperr.Conflict("Booking is already paid")
	case err != nil:
		return nil, apperr.Internal("failed to save payment", err)
	}

	return &OrderDetails{
		OrderID:   order.ID,
		Amount:    amount,
		Currency:  s.currency,
		KeyID:     s.keyID,
		BookingID: booking.ID,
	}, nil
}

// Verify checks the gateway signature and, when it matches, completes the
// payment and accepts the booking in one step. Repeating a successful verify
// with the same payment id returns the stored result.
func (s *PaymentService) Verify(ctx context.Context, req VerifyRequest, callerID uint) (*VerifyResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" || req.BookingID == 0 {
		return nil, apperr.Validation("razorpay_order_id, razorpay_payment_id, razorpay_signature and bookingId are required")
	}

	expected := PaymentSignature(s.secret, req.OrderID, req.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(req.Signature)) {
		s.log.WithFields(logrus.Fields{"order_id": req.OrderID, "booking_id": req.BookingID}).
			Warn("payment signature mismatch")
		return nil, apperr.SignatureMismatch("Invalid payment signature")
	}

	booking, err := s.loadBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != callerID {
		return nil, apperr.Authorization("Only the guest who made the booking can pay for it")
	}

	payment, err := s.store.GetPaymentByOrder(ctx, req.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Payment order not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load payment", err)
	}
	if payment.BookingID != booking.ID {
		return nil, apperr.Validation("Order does not belong to this booking")
	}

	if payment.IsCompleted() {
		if payment.GatewayPaymentID != nil && *payment.GatewayPaymentID == req.PaymentID {
			return &VerifyResult{Payment: payment, Booking: booking}, nil
		}
		return nil, apperr.Conflict("Booking is already paid")
	}

	completed, updated, err := s.store.CompletePayment(ctx, req.OrderID, req.PaymentID, req.Signature)
	switch {
	case errors.Is(err, store.ErrStateChanged):
		// A concurrent verify of the same payment may have won the update.
		if result, ok := s.completedBy(ctx, req.OrderID, req.PaymentID); ok {
			return result, nil
		}
		return nil, apperr.Conflict("Booking can no longer be paid")
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("Payment order not found")
	case err != nil:
		return nil, apperr.Internal("failed to complete payment", err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"order_id":   req.OrderID,
		"payment_id": req.PaymentID,
	}).Info("payment verified")

	n := Notification{
		Type:  NotificationPaymentCompleted,
		Title: "Payment received",
		Body:  fmt.Sprintf("Booking #%d has been paid and confirmed.", updated.ID),
		Path:  "/bookings",
		Data:  map[string]string{"bookingId": fmt.Sprint(updated.ID)},
	}
	notify(ctx, s.notifier, s.log, updated.OwnerID, n)

	return &VerifyResult{Payment: completed, Booking: updated}, nil
}

// Get returns the payment of a booking to its guest or owner.
func (s *PaymentService) Get(ctx context.Context, bookingID, callerID uint) (*models.Payment, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(callerID) {
		return nil, apperr.Authorization("You do not have access to this payment")
	}

	payment, err := s.store.GetPaymentByBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Payment not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load payment", err)
	}
	return payment, nil
}
