package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) *Store) {
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("BookingOverlapIsInclusive", func(t *testing.T) { testBookingOverlap(t, newStore(t)) })
	t.Run("BookingTransitions", func(t *testing.T) { testBookingTransitions(t, newStore(t)) })
	t.Run("BookingPagination", func(t *testing.T) { testBookingPagination(t, newStore(t)) })
	t.Run("PaymentLifecycle", func(t *testing.T) { testPaymentLifecycle(t, newStore(t)) })
	t.Run("PaymentOnRejectedBooking", func(t *testing.T) { testPaymentOnRejectedBooking(t, newStore(t)) })
	t.Run("DirectMessages", func(t *testing.T) { testDirectMessages(t, newStore(t)) })
	t.Run("Chats", func(t *testing.T) { testChats(t, newStore(t)) })
	t.Run("OTPs", func(t *testing.T) { testOTPs(t, newStore(t)) })
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustUser(t *testing.T, s *Store, email string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Name: email, Email: email, Role: role, PasswordHash: "x"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func mustProperty(t *testing.T, s *Store, ownerID uint) *models.Property {
	t.Helper()
	p := &models.Property{Title: "Flat", Price: 1000, Location: "Pune", Type: models.PropertyTypeFlat, OwnerID: ownerID}
	require.NoError(t, s.CreateProperty(context.Background(), p))
	return p
}

func newBooking(p *models.Property, userID uint, in, out string) *models.Booking {
	checkIn, checkOut := day(in), day(out)
	q := utils.CalculateStay(checkIn, checkOut, p.Price)
	return &models.Booking{
		PropertyID:  p.ID,
		UserID:      userID,
		OwnerID:     p.OwnerID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Days:        q.Days,
		TotalAmount: q.TotalAmount,
		Status:      models.BookingStatusPending,
	}
}

func testDuplicateEmail(t *testing.T, s *Store) {
	ctx := context.Background()
	mustUser(t, s, "dup@example.com", models.UserRoleSeeker)

	err := s.CreateUser(ctx, &models.User{Name: "again", Email: "dup@example.com", Role: models.UserRoleOwner, PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	u, err := s.GetUserByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleSeeker, u.Role)

	_, err = s.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testBookingOverlap(t *testing.T, s *Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com", models.UserRoleOwner)
	seeker := mustUser(t, s, "seeker@example.com", models.UserRoleSeeker)
	p := mustProperty(t, s, owner.ID)

	require.NoError(t, s.CreateBookingIfAvailable(ctx, newBooking(p, seeker.ID, "2030-01-10", "2030-01-12")))

	// Sharing the checkout day counts as an overlap.
	err := s.CreateBookingIfAvailable(ctx, newBooking(p, seeker.ID, "2030-01-12", "2030-01-14"))
	assert.ErrorIs(t, err, ErrOverlap)

	err = s.CreateBookingIfAvailable(ctx, newBooking(p, seeker.ID, "2030-01-05", "2030-01-20"))
	assert.ErrorIs(t, err, ErrOverlap)

	require.NoError(t, s.CreateBookingIfAvailable(ctx, newBooking(p, seeker.ID, "2030-01-13", "2030-01-15")))

	blocking, err := s.ListBlockingBookings(ctx, p.ID, day("2030-01-01"), day("2030-01-31"))
	require.NoError(t, err)
	assert.Len(t, blocking, 2)

	other := mustProperty(t, s, owner.ID)
	err = s.CreateBookingIfAvailable(ctx, newBooking(other, seeker.ID, "2030-01-10", "2030-01-12"))
	assert.NoError(t, err, "bookings on another property never conflict")

	missing := &models.Property{Price: 1, OwnerID: owner.ID}
	missing.ID = 999999
	err = s.CreateBookingIfAvailable(ctx, newBooking(missing, seeker.ID, "2030-02-01", "2030-02-02"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func testBookingTransitions(t *testing.T, s *Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com", models.UserRoleOwner)
	seeker := mustUser(t, s, "seeker@example.com", models.UserRoleSeeker)
	p := mustProperty(t, s, owner.ID)

	b := newBooking(p, seeker.ID, "2030-03-01", "2030-03-03")
	require.NoError(t, s.CreateBookingIfAvailable(ctx, b))

	rejected, err := s.TransitionBooking(ctx, b.ID, models.BookingStatusPending, models.BookingStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusRejected, rejected.Status)

	_, err = s.TransitionBooking(ctx, b.ID, models.BookingStatusPending, models.BookingStatusAccepted)
	assert.ErrorIs(t, err, ErrStateChanged)

	_, err = s.TransitionBooking(ctx, 999999, models.BookingStatusPending, models.BookingStatusAccepted)
	assert.ErrorIs(t, err, ErrNotFound)

	// A rejected booking frees its dates.
	require.NoError(t, s.CreateBookingIfAvailable(ctx, newBooking(p, seeker.ID, "2030-03-01", "2030-03-03")))
}

func testBookingPagination(t *testing.T, s *Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com", models.UserRoleOwner)
	seeker := mustUser(t, s, "seeker@example.com", models.UserRoleSeeker)
	p := mustProperty(t, s, owner.ID)

	start := day("2031-01-01")
	for i := 0; i < 15; i++ {
		in := start.AddDate(0, 0, i*3)
		b := newBooking(p, seeker.ID, in.Format("2006-01-02"), in.AddDate(0, 0, 1).Format("2006-01-02"))
		require.NoError(t, s.CreateBookingIfAvailable(ctx, b), fmt.Sprintf("booking %d", i))
	}

	page2, total, err := s.ListBookings(ctx, BookingFilter{OwnerID: owner.ID}, utils.Pagination{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)
	assert.Len(t, page2, 5)

	mine, total, err := s.ListBookings(ctx, BookingFilter{UserID: seeker.ID, Status: models.BookingStatusAccepted}, utils.Pagination{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, mine)
}

func testPaymentLifecycle(t *testing.T, s *Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com", models.UserRoleOwner)
	seeker := mustUser(t, s, "seeker@example.com", models.UserRoleSeeker)
	p := mustProperty(t, s, owner.ID)
	b := newBooking(p, seeker.ID, "2030-04-01", "2030-04-03")
	require.NoError(t, s.CreateBookingIfAvailable(ctx, b))

	first := &models.Payment{BookingID: b.ID, GatewayOrderID: "order_1", Amount: 200000, Currency: "INR"}
	require.NoError(t, s.SavePendingPayment(ctx, first))

	second := &models.Payment{BookingID: b.ID, GatewayOrderID: "order_2", Amount: 200000, Currency: "INR"}
	require.NoError(t, s.SavePendingPayment(ctx, second))
	assert.Equal(t, first.ID, second.ID, "a retried order reuses the booking's payment row")

	_, err := s.GetPaymentByOrder(ctx, "order_1")
	assert.ErrorIs(t, err, ErrNotFound)

	payment, booking, err := s.CompletePayment(ctx, "order_2", "pay_1", "sig")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, models.BookingStatusAccepted, booking.Status)
	require.NotNil(t, booking.PaymentStatus)
	assert.Equal(t, models.PaymentStatusCompleted, *booking.PaymentStatus)

	stored, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusAccepted, stored.Status)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "pay_1", *stored.PaymentID)

	storedPayment, err := s.GetPaymentByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, storedPayment.IsCompleted())
	require.NotNil(t, storedPayment.GatewayPaymentID)
	assert.Equal(t, "pay_1", *storedPayment.GatewayPaymentID)

	_, _, err = s.CompletePayment(ctx, "order_2", "pay_2", "sig")
	assert.ErrorIs(t, err, ErrStateChanged)

	err = s.SavePendingPayment(ctx, &models.Payment{BookingID: b.ID, GatewayOrderID: "order_3", Amount: 1, Currency: "INR"})
	assert.ErrorIs(t, err, ErrStateChanged)

	_, _, err = s.CompletePayment(ctx, "order_missing", "pay", "sig")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testPaymentOnRejectedBooking(t *testing.T, s *Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com", models.UserRoleOwner)
	seeker := mustUser(t, s, "seeker@example.com", models.UserRoleSeeker)
	p := mustProperty(t, s, owner.ID)
	b := newBooking(p, seeker.ID, "2030-05-01", "2030-05-03")
	require.NoError(t, s.CreateBookingIfAvailable(ctx, b))
	require.NoError(t, s.SavePendingPayment(ctx, &models.Payment{BookingID: b.ID, GatewayOrderID: "order_r", Amount: 1, Currency: "INR"}))

	_, err := s.TransitionBooking(ctx, b.ID, models.BookingStatusPending, models.BookingStatusRejected)
	require.NoError(t, err)

	_, _, err = s.CompletePayment(ctx, "order_r", "pay_r", "sig")
	assert.ErrorIs(t, err, ErrStateChanged)

	// Neither record changed.
	payment, err := s.GetPaymentByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	booking, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusRejected, booking.Status)
	assert.Nil(t, booking.PaymentStatus)
}

func testDirectMessages(t *testing.T, s *Store) {
	ctx := context.Background()
	a := mustUser(t, s, "a@example.com", models.UserRoleSeeker)
	b := mustUser(t, s, "b@example.com", models.UserRoleOwner)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveDirectMessage(ctx, &models.DirectMessage{SenderID: a.ID, ReceiverID: b.ID, Content: fmt.Sprintf("m%d", i)}))
	}
	require.NoError(t, s.SaveDirectMessage(ctx, &models.DirectMessage{SenderID: b.ID, ReceiverID: a.ID, Content: "reply"}))

	unread, err := s.UnreadCount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	inbox, total, err := s.Inbox(ctx, b.ID, utils.Pagination{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, inbox, 2)
	assert.Equal(t, "m2", inbox[0].Content, "newest first")

	unread, err = s.UnreadCount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread, "only the fetched page is marked read")

	conv, err := s.Conversation(ctx, a.ID, b.ID, 10)
	require.NoError(t, err)
	require.Len(t, conv, 4)
	assert.Equal(t, "m0", conv[0].Content)
	assert.Equal(t, "reply", conv[3].Content)
}

func testChats(t *testing.T, s *Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com", models.UserRoleOwner)
	buyer := mustUser(t, s, "buyer@example.com", models.UserRoleSeeker)
	p := mustProperty(t, s, owner.ID)

	chat, err := s.GetOrCreateChat(ctx, buyer.ID, owner.ID, p.ID)
	require.NoError(t, err)
	again, err := s.GetOrCreateChat(ctx, buyer.ID, owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)

	require.NoError(t, s.AddChatMessage(ctx, &models.ChatMessage{ChatID: chat.ID, SenderID: buyer.ID, Content: "Is it available?"}))
	require.NoError(t, s.AddChatMessage(ctx, &models.ChatMessage{ChatID: chat.ID, SenderID: owner.ID, Content: "Yes"}))

	msgs, err := s.ListChatMessages(ctx, chat.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Is it available?", msgs[0].Content)

	msgs, err = s.ListChatMessages(ctx, chat.ID, buyer.ID)
	require.NoError(t, err)
	assert.True(t, msgs[0].Read, "the owner already fetched the buyer's message")
	assert.False(t, msgs[1].Read)

	chats, err := s.ListChats(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	_, err = s.GetChat(ctx, 987654)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testOTPs(t *testing.T, s *Store) {
	ctx := context.Background()
	u := mustUser(t, s, "otp@example.com", models.UserRoleSeeker)
	now := time.Now()

	first := &models.OTP{UserID: u.ID, Code: "111111", Type: models.OTPTypePasswordReset, ExpiresAt: now.Add(utils.OTPExpiration)}
	require.NoError(t, s.CreateOTP(ctx, first))
	second := &models.OTP{UserID: u.ID, Code: "222222", Type: models.OTPTypePasswordReset, ExpiresAt: now.Add(utils.OTPExpiration)}
	require.NoError(t, s.CreateOTP(ctx, second))

	assert.ErrorIs(t, s.ConsumeOTP(ctx, u.ID, "111111", models.OTPTypePasswordReset, now), ErrNotFound, "superseded code")
	assert.ErrorIs(t, s.ConsumeOTP(ctx, u.ID, "222222", models.OTPTypePasswordReset, now.Add(time.Hour)), ErrNotFound, "expired code")
	require.NoError(t, s.ConsumeOTP(ctx, u.ID, "222222", models.OTPTypePasswordReset, now))
	assert.ErrorIs(t, s.ConsumeOTP(ctx, u.ID, "222222", models.OTPTypePasswordReset, now), ErrNotFound, "single use")
}
