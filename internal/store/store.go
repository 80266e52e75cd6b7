// Package store holds the persistence strategies: a gorm/postgres store for
// production, an in-memory fixture store for development and tests, and a
// MongoDB store for chat history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/pkg/utils"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrOverlap is returned when a booking would overlap a pending or accepted one.
	ErrOverlap = errors.New("booking dates overlap")
	// ErrStateChanged is returned when a conditional update finds the row in another state.
	ErrStateChanged = errors.New("record state changed")
)

type PropertyFilter struct {
	OwnerID  uint
	Type     models.PropertyType
	Location string
	MinPrice *float64
	MaxPrice *float64
}

type BookingFilter struct {
	OwnerID    uint
	UserID     uint
	PropertyID uint
	Status     models.BookingStatus
}

type Users interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
	SetFCMToken(ctx context.Context, id uint, token string) error
}

type Properties interface {
	CreateProperty(ctx context.Context, property *models.Property) error
	GetProperty(ctx context.Context, id uint) (*models.Property, error)
	UpdateProperty(ctx context.Context, property *models.Property) error
	DeleteProperty(ctx context.Context, id uint) error
	ListProperties(ctx context.Context, filter PropertyFilter, page utils.Pagination) ([]models.Property, int64, error)
	ListPropertiesInBox(ctx context.Context, box utils.BoundingBox) ([]models.Property, error)
}

type Bookings interface {
	// CreateBookingIfAvailable inserts the booking unless a pending or accepted
	// booking on the same property overlaps it. Check and insert are atomic.
	CreateBookingIfAvailable(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	// TransitionBooking moves a booking from one status to another and fails
	// with ErrStateChanged if it is no longer in the from status.
	TransitionBooking(ctx context.Context, id uint, from, to models.BookingStatus) (*models.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter, page utils.Pagination) ([]models.Booking, int64, error)
	ListBlockingBookings(ctx context.Context, propertyID uint, from, to time.Time) ([]models.Booking, error)
}

type Payments interface {
	// SavePendingPayment creates the booking's payment or points a pending one
	// at a new gateway order. Completed payments are never overwritten.
	SavePendingPayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByBooking(ctx context.Context, bookingID uint) (*models.Payment, error)
	GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error)
	// CompletePayment marks the payment completed and the booking paid and
	// accepted in a single transaction.
	CompletePayment(ctx context.Context, orderID, paymentID, signature string) (*models.Payment, *models.Booking, error)
}

type Chats interface {
	GetOrCreateChat(ctx context.Context, buyerID, ownerID, propertyID uint) (*models.Chat, error)
	GetChat(ctx context.Context, id uint) (*models.Chat, error)
	ListChats(ctx context.Context, userID uint) ([]models.Chat, error)
	AddChatMessage(ctx context.Context, msg *models.ChatMessage) error
	// ListChatMessages returns the thread oldest first and marks messages
	// from the other participant as read.
	ListChatMessages(ctx context.Context, chatID, readerID uint) ([]models.ChatMessage, error)
}

type Messages interface {
	SaveDirectMessage(ctx context.Context, msg *models.DirectMessage) error
	// Inbox returns the receiver's messages newest first and marks them read.
	Inbox(ctx context.Context, receiverID uint, page utils.Pagination) ([]models.DirectMessage, int64, error)
	Conversation(ctx context.Context, userA, userB uint, limit int) ([]models.DirectMessage, error)
	UnreadCount(ctx context.Context, receiverID uint) (int64, error)
}

type OTPs interface {
	// CreateOTP stores a code and invalidates earlier unused codes of the same type.
	CreateOTP(ctx context.Context, otp *models.OTP) error
	ConsumeOTP(ctx context.Context, userID uint, code string, otpType models.OTPType, now time.Time) error
}

// Store groups every repository the services need. Chats and Messages may be
// backed by a different database than the rest.
type Store struct {
	Users
	Properties
	Bookings
	Payments
	Chats
	Messages
	OTPs
}
