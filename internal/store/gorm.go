package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// GormStore implements every repository on top of postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// NewGorm returns a Store whose repositories are all backed by db.
func NewGorm(db *gorm.DB) *Store {
	s := NewGormStore(db)
	return &Store{Users: s, Properties: s, Bookings: s, Payments: s, Chats: s, Messages: s, OTPs: s}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetFCMToken(ctx context.Context, id uint, token string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("fcm_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Properties

func (s *GormStore) CreateProperty(ctx context.Context, property *models.Property) error {
	return s.db.WithContext(ctx).Create(property).Error
}

func (s *GormStore) GetProperty(ctx context.Context, id uint) (*models.Property, error) {
	var property models.Property
	if err := s.db.WithContext(ctx).First(&property, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &property, nil
}

func (s *GormStore) UpdateProperty(ctx context.Context, property *models.Property) error {
	return s.db.WithContext(ctx).Save(property).Error
}

func (s *GormStore) DeleteProperty(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Property{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListProperties(ctx context.Context, filter PropertyFilter, page utils.Pagination) ([]models.Property, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Property{})
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Location != "" {
		query = query.Where("location ILIKE ?", "%"+escapeLike(filter.Location)+"%")
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var properties []models.Property
	if err := query.Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&properties).Error; err != nil {
		return nil, 0, err
	}
	return properties, total, nil
}

func (s *GormStore) ListPropertiesInBox(ctx context.Context, box utils.BoundingBox) ([]models.Property, error) {
	var properties []models.Property
	err := s.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ?", box.SouthWest.Lat, box.NorthEast.Lat).
		Where("longitude BETWEEN ? AND ?", box.SouthWest.Lng, box.NorthEast.Lng).
		Find(&properties).Error
	return properties, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Bookings

func (s *GormStore) CreateBookingIfAvailable(ctx context.Context, booking *models.Booking) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes concurrent requests for the same property.
		var property models.Property
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&property, booking.PropertyID).Error; err != nil {
			return notFound(err)
		}

		var overlapping int64
		if err := tx.Model(&models.Booking{}).
			Where("property_id = ? AND status IN ?", booking.PropertyID, models.BlockingStatuses).
			Where("check_in <= ? AND check_out >= ?", booking.CheckOut, booking.CheckIn).
			Count(&overlapping).Error; err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrOverlap
		}

		return tx.Create(booking).Error
	})
	if pgCode(err) == pgExclusionViolation {
		return ErrOverlap
	}
	return err
}

func (s *GormStore) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

func (s *GormStore) TransitionBooking(ctx context.Context, id uint, from, to models.BookingStatus) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Select("id").First(&models.Booking{}, id).Error; err != nil {
				return notFound(err)
			}
			return ErrStateChanged
		}
		return tx.First(&booking, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *GormStore) ListBookings(ctx context.Context, filter BookingFilter, page utils.Pagination) ([]models.Booking, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Booking{})
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.PropertyID != 0 {
		query = query.Where("property_id = ?", filter.PropertyID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	if err := query.Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (s *GormStore) ListBlockingBookings(ctx context.Context, propertyID uint, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND status IN ?", propertyID, models.BlockingStatuses).
		Where("check_in <= ? AND check_out >= ?", to, from).
		Order("check_in ASC").
		Find(&bookings).Error
	return bookings, err
}

// Payments

func (s *GormStore) SavePendingPayment(ctx context.Context, payment *models.Payment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ?", payment.BookingID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			payment.Status = models.PaymentStatusPending
			return tx.Create(payment).Error
		}
		if err != nil {
			return err
		}
		if existing.IsCompleted() {
			return ErrStateChanged
		}

		existing.GatewayOrderID = payment.GatewayOrderID
		existing.Amount = payment.Amount
		existing.Currency = payment.Currency
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*payment = existing
		return nil
	})
}

func (s *GormStore) GetPaymentByBooking(ctx context.Context, bookingID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&payment).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (s *GormStore) GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("gateway_order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (s *GormStore) CompletePayment(ctx context.Context, orderID, paymentID, signature string) (*models.Payment, *models.Booking, error) {
	var payment models.Payment
	var booking models.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("gateway_order_id = ?", orderID).
			First(&payment).Error; err != nil {
			return notFound(err)
		}
		if payment.IsCompleted() {
			return ErrStateChanged
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&booking, payment.BookingID).Error; err != nil {
			return notFound(err)
		}
		if booking.Status == models.BookingStatusRejected {
			return ErrStateChanged
		}

		completed := models.PaymentStatusCompleted
		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"status":             completed,
			"gateway_payment_id": paymentID,
			"signature":          signature,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&booking).Updates(map[string]interface{}{
			"payment_id":     paymentID,
			"payment_status": completed,
			"status":         models.BookingStatusAccepted,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}

	payment.Status = models.PaymentStatusCompleted
	payment.GatewayPaymentID = &paymentID
	payment.Signature = &signature
	completed := models.PaymentStatusCompleted
	booking.PaymentID = &paymentID
	booking.PaymentStatus = &completed
	booking.Status = models.BookingStatusAccepted
	return &payment, &booking, nil
}

// Chats

func (s *GormStore) GetOrCreateChat(ctx context.Context, buyerID, ownerID, propertyID uint) (*models.Chat, error) {
	chat := models.Chat{BuyerID: buyerID, OwnerID: ownerID, PropertyID: propertyID}
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? AND owner_id = ? AND property_id = ?", buyerID, ownerID, propertyID).
		FirstOrCreate(&chat).Error
	if pgCode(err) == pgUniqueViolation {
		// Lost a race with a concurrent first contact.
		err = s.db.WithContext(ctx).
			Where("buyer_id = ? AND owner_id = ? AND property_id = ?", buyerID, ownerID, propertyID).
			First(&chat).Error
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *GormStore) GetChat(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := s.db.WithContext(ctx).First(&chat, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

func (s *GormStore) ListChats(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? OR owner_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

func (s *GormStore) AddChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", msg.ChatID).Update("updated_at", time.Now()).Error
	})
}

func (s *GormStore) ListChatMessages(ctx context.Context, chatID, readerID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Order("id ASC").Find(&messages).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatMessage{}).
			Where("chat_id = ? AND sender_id <> ? AND read = ?", chatID, readerID, false).
			Update("read", true).Error
	})
	return messages, err
}

// Direct messages

func (s *GormStore) SaveDirectMessage(ctx context.Context, msg *models.DirectMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *GormStore) Inbox(ctx context.Context, receiverID uint, page utils.Pagination) ([]models.DirectMessage, int64, error) {
	var messages []models.DirectMessage
	var total int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.DirectMessage{}).Where("receiver_id = ?", receiverID)
		if err := query.Count(&total).Error; err != nil {
			return err
		}
		if err := query.Order("id DESC").Offset(page.Offset()).Limit(page.Limit).Find(&messages).Error; err != nil {
			return err
		}

		var unread []uint
		for _, m := range messages {
			if !m.Read {
				unread = append(unread, m.ID)
			}
		}
		if len(unread) == 0 {
			return nil
		}
		return tx.Model(&models.DirectMessage{}).Where("id IN ?", unread).Update("read", true).Error
	})
	return messages, total, err
}

func (s *GormStore) Conversation(ctx context.Context, userA, userB uint, limit int) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *GormStore) UnreadCount(ctx context.Context, receiverID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("receiver_id = ? AND read = ?", receiverID, false).
		Count(&count).Error
	return count, err
}

// OTPs

func (s *GormStore) CreateOTP(ctx context.Context, otp *models.OTP) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OTP{}).
			Where("user_id = ? AND type = ? AND used = ?", otp.UserID, otp.Type, false).
			Update("used", true).Error; err != nil {
			return err
		}
		return tx.Create(otp).Error
	})
}

func (s *GormStore) ConsumeOTP(ctx context.Context, userID uint, code string, otpType models.OTPType, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.OTP{}).
		Where("user_id = ? AND code = ? AND type = ? AND used = ? AND expires_at > ?", userID, code, otpType, false, now).
		Update("used", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
