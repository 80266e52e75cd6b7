package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/config"
	"github.com/chachabrian/propnest-backend/internal/logging"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	store    *store.Store
	bookings *BookingService
	payments *PaymentService
	notifier *recordingNotifier
}

func newPaymentFixture(t *testing.T, gateway Gateway) *paymentFixture {
	t.Helper()
	s := seededStore(t)
	notifier := &recordingNotifier{}
	return &paymentFixture{
		store:    s,
		bookings: newBookingService(t, s, NoopNotifier{}),
		payments: NewPaymentService(s, gateway, testKeyID, testSecret, "INR", notifier, logging.Discard()),
		notifier: notifier,
	}
}

type failingGateway struct{}

func (failingGateway) CreateOrder(context.Context, int64, string, string) (*GatewayOrder, error) {
	return nil, ErrGatewayUnavailable
}

func TestPaymentSignature(t *testing.T) {
	sig := PaymentSignature([]byte("secret"), "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, PaymentSignature([]byte("secret"), "order_1", "pay_1"))
	assert.NotEqual(t, sig, PaymentSignature([]byte("secret"), "order_1", "pay_2"))
	assert.NotEqual(t, sig, PaymentSignature([]byte("other"), "order_1", "pay_1"))
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, FixtureGateway{})
	b := mustBook(t, f.bookings, flatID, seekerID, "2025-01-10", "2025-01-12")

	order, err := f.payments.CreateOrder(ctx, b.ID, seekerID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(order.OrderID, "order_fixture_"))
	assert.Equal(t, int64(500000), order.Amount, "2 days at 2500 in paise")
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, testKeyID, order.KeyID)

	payment, err := f.store.GetPaymentByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, order.OrderID, payment.GatewayOrderID)

	again, err := f.payments.CreateOrder(ctx, b.ID, seekerID)
	require.NoError(t, err)
	assert.NotEqual(t, order.OrderID, again.OrderID)
	payment, err = f.store.GetPaymentByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, again.OrderID, payment.GatewayOrderID, "the newest order replaces the pending one")

	// Only the newest order can be verified.
	_, err = f.payments.Verify(ctx, VerifyRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_old",
		Signature: PaymentSignature([]byte(testSecret), order.OrderID, "pay_old"),
		BookingID: b.ID,
	}, seekerID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.payments.Verify(ctx, VerifyRequest{
		OrderID:   again.OrderID,
		PaymentID: "pay_new",
		Signature: PaymentSignature([]byte(testSecret), again.OrderID, "pay_new"),
		BookingID: b.ID,
	}, seekerID)
	assert.NoError(t, err)
}

func TestCreateOrderRefusals(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, FixtureGateway{})
	b := mustBook(t, f.bookings, flatID, seekerID, "2025-01-10", "2025-01-12")

	_, err := f.payments.CreateOrder(ctx, 999, seekerID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.payments.CreateOrder(ctx, b.ID, ownerID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = f.bookings.Reject(ctx, b.ID, ownerID)
	require.NoError(t, err)
	_, err = f.payments.CreateOrder(ctx, b.ID, seekerID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, failingGateway{})
	b := mustBook(t, f.bookings, flatID, seekerID, "2025-01-10", "2025-01-12")

	_, err := f.payments.CreateOrder(ctx, b.ID, seekerID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	_, err = f.store.GetPaymentByBooking(ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "nothing is recorded when the gateway fails")
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, FixtureGateway{})
	b := mustBook(t, f.bookings, flatID, seekerID, "2025-01-10", "2025-01-12")
	order, err := f.payments.CreateOrder(ctx, b.ID, seekerID)
	require.NoError(t, err)

	req := VerifyRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_29QQoUBi66xm2f",
		Signature: PaymentSignature([]byte(testSecret), order.OrderID, "pay_29QQoUBi66xm2f"),
		BookingID: b.ID,
	}

	result, err := f.payments.Verify(ctx, req, seekerID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, models.BookingStatusAccepted, result.Booking.Status)

	stored, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusAccepted, stored.Status)
	require.NotNil(t, stored.PaymentStatus)
	assert.Equal(t, models.PaymentStatusCompleted, *stored.PaymentStatus)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "pay_29QQoUBi66xm2f", *stored.PaymentID)

	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, ownerID, sent[0].UserID)
	assert.Equal(t, NotificationPaymentCompleted, sent[0].Type)

	// A retried verify with the same payment succeeds without a second update.
	again, err := f.payments.Verify(ctx, req, seekerID)
	require.NoError(t, err)
	assert.Equal(t, result.Payment.ID, again.Payment.ID)
	assert.Len(t, f.notifier.all(), 1)

	other := req
	other.PaymentID = "pay_other"
	other.Signature = PaymentSignature([]byte(testSecret), order.OrderID, "pay_other")
	_, err = f.payments.Verify(ctx, other, seekerID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.payments.CreateOrder(ctx, b.ID, seekerID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "a paid booking gets no new order")
}

// stalePayments hands out one pending snapshot of an order, the view of a
// request that read the payment before a concurrent verify completed it.
type stalePayments struct {
	store.Payments
	snapshot *models.Payment
	served   bool
}

func (p *stalePayments) GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	if !p.served && p.snapshot.GatewayOrderID == orderID {
		p.served = true
		cp := *p.snapshot
		return &cp, nil
	}
	return p.Payments.GetPaymentByOrder(ctx, orderID)
}

func TestVerifyRacingSamePayment(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, FixtureGateway{})
	b := mustBook(t, f.bookings, flatID, seekerID, "2025-01-10", "2025-01-12")
	order, err := f.payments.CreateOrder(ctx, b.ID, seekerID)
	require.NoError(t, err)
	pending, err := f.store.GetPaymentByOrder(ctx, order.OrderID)
	require.NoError(t, err)

	sig := PaymentSignature([]byte(testSecret), order.OrderID, "pay_1")
	_, _, err = f.store.CompletePayment(ctx, order.OrderID, "pay_1", sig)
	require.NoError(t, err)

	racing := func() *PaymentService {
		s := *f.store
		s.Payments = &stalePayments{Payments: f.store.Payments, snapshot: pending}
		return NewPaymentService(&s, FixtureGateway{}, testKeyID, testSecret, "INR", f.notifier, logging.Discard())
	}

	result, err := racing().Verify(ctx, VerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: sig, BookingID: b.ID}, seekerID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, models.BookingStatusAccepted, result.Booking.Status)
	assert.Empty(t, f.notifier.all(), "the losing request sends nothing")

	other := PaymentSignature([]byte(testSecret), order.OrderID, "pay_2")
	_, err = racing().Verify(ctx, VerifyRequest{OrderID: order.OrderID, PaymentID: "pay_2", Signature: other, BookingID: b.ID}, seekerID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestVerifySignatureMismatch(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, FixtureGateway{})
	b := mustBook(t, f.bookings, flatID, seekerID, "2025-01-10", "2025-01-12")
	order, err := f.payments.CreateOrder(ctx, b.ID, seekerID)
	require.NoError(t, err)

	bad := []string{
		"deadbeef",
		PaymentSignature([]byte("wrong_secret"), order.OrderID, "pay_1"),
		PaymentSignature([]byte(testSecret), order.OrderID, "pay_2"),
		PaymentSignature([]byte(testSecret), order.OrderID+"|", "pay_1"),
		strings.ToUpper(PaymentSignature([]byte(testSecret), order.OrderID, "pay_1")),
		" " + PaymentSignature([]byte(testSecret), order.OrderID, "pay_1") + " ",
	}
	for _, sig := range bad {
		_, err := f.payments.Verify(ctx, VerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: sig, BookingID: b.ID}, seekerID)
		require.Error(t, err)
		assert.Equal(t, apperr.KindSignatureMismatch, apperr.KindOf(err))
		assert.Equal(t, 400, apperr.HTTPStatus(err))
	}

	payment, err := f.store.GetPaymentByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	booking, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
}

func TestVerifyRefusals(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, FixtureGateway{})
	b := mustBook(t, f.bookings, flatID, seekerID, "2025-01-10", "2025-01-12")
	order, err := f.payments.CreateOrder(ctx, b.ID, seekerID)
	require.NoError(t, err)
	otherBooking := mustBook(t, f.bookings, houseID, seekerID, "2025-01-10", "2025-01-12")

	signed := func(orderID, paymentID string, bookingID uint) VerifyRequest {
		return VerifyRequest{
			OrderID:   orderID,
			PaymentID: paymentID,
			Signature: PaymentSignature([]byte(testSecret), orderID, paymentID),
			BookingID: bookingID,
		}
	}

	_, err = f.payments.Verify(ctx, VerifyRequest{OrderID: order.OrderID}, seekerID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.payments.Verify(ctx, signed(order.OrderID, "pay_1", b.ID), ownerID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = f.payments.Verify(ctx, signed("order_unknown", "pay_1", b.ID), seekerID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.payments.Verify(ctx, signed(order.OrderID, "pay_1", otherBooking.ID), seekerID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.bookings.Reject(ctx, b.ID, ownerID)
	require.NoError(t, err)
	_, err = f.payments.Verify(ctx, signed(order.OrderID, "pay_1", b.ID), seekerID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestPaymentGet(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, FixtureGateway{})
	b := mustBook(t, f.bookings, flatID, seekerID, "2025-01-10", "2025-01-12")

	_, err := f.payments.Get(ctx, b.ID, seekerID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.payments.CreateOrder(ctx, b.ID, seekerID)
	require.NoError(t, err)

	for _, caller := range []uint{seekerID, ownerID} {
		p, err := f.payments.Get(ctx, b.ID, caller)
		require.NoError(t, err)
		assert.Equal(t, b.ID, p.BookingID)
	}

	_, err = f.payments.Get(ctx, b.ID, owner2ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func newTestRazorpay(url string) *RazorpayGateway {
	return NewRazorpayGateway(config.PaymentConfig{
		KeyID:      testKeyID,
		KeySecret:  testSecret,
		BaseURL:    url,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}, logging.Discard())
}

func TestRazorpayCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testKeyID, user)
		assert.Equal(t, testSecret, pass)

		var body razorpayOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(200000), body.Amount)
		assert.Equal(t, "INR", body.Currency)
		assert.Equal(t, "booking_7", body.Receipt)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"order_EKwxwAgItmmXdp","entity":"order","amount":200000,"currency":"INR","receipt":"booking_7","status":"created"}`))
	}))
	defer srv.Close()

	order, err := newTestRazorpay(srv.URL).CreateOrder(context.Background(), 200000, "INR", "booking_7")
	require.NoError(t, err)
	assert.Equal(t, "order_EKwxwAgItmmXdp", order.ID)
	assert.Equal(t, "created", order.Status)
}

func TestRazorpayRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"order_retry","amount":100,"currency":"INR","status":"created"}`))
	}))
	defer srv.Close()

	order, err := newTestRazorpay(srv.URL).CreateOrder(context.Background(), 100, "INR", "r")
	require.NoError(t, err)
	assert.Equal(t, "order_retry", order.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRazorpayGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestRazorpay(srv.URL).CreateOrder(context.Background(), 100, "INR", "r")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRazorpayClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	}))
	defer srv.Close()

	_, err := newTestRazorpay(srv.URL).CreateOrder(context.Background(), 1, "INR", "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The amount must be atleast INR 1.00")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "rzp_test****", maskKey("rzp_test_abcdef"))
	assert.Equal(t, "****", maskKey("short"))
}
