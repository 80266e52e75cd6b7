package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/pkg/utils"
)

// FixtureStore is an in-memory implementation of every repository. It backs
// the fixture data mode and the service tests. A single mutex makes each
// operation atomic, including the booking check-and-insert.
type FixtureStore struct {
	mu  sync.Mutex
	now func() time.Time

	users      map[uint]*models.User
	properties map[uint]*models.Property
	bookings   map[uint]*models.Booking
	payments   map[uint]*models.Payment // keyed by booking id
	chats      map[uint]*models.Chat
	chatMsgs   []*models.ChatMessage
	directMsgs []*models.DirectMessage
	otps       []*models.OTP

	nextID map[string]uint
}

func NewFixtureStore() *FixtureStore {
	return &FixtureStore{
		now:        time.Now,
		users:      map[uint]*models.User{},
		properties: map[uint]*models.Property{},
		bookings:   map[uint]*models.Booking{},
		payments:   map[uint]*models.Payment{},
		chats:      map[uint]*models.Chat{},
		nextID:     map[string]uint{},
	}
}

// NewFixture returns a Store whose repositories are all in memory.
func NewFixture() (*Store, *FixtureStore) {
	f := NewFixtureStore()
	return &Store{Users: f, Properties: f, Bookings: f, Payments: f, Chats: f, Messages: f, OTPs: f}, f
}

func (f *FixtureStore) id(kind string) uint {
	f.nextID[kind]++
	return f.nextID[kind]
}

func stampModel(now time.Time, created, updated *time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// Users

func (f *FixtureStore) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	user.ID = f.id("user")
	stampModel(f.now(), &user.CreatedAt, &user.UpdatedAt)
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *FixtureStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *FixtureStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *FixtureStore) UpdatePassword(_ context.Context, id uint, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = f.now()
	return nil
}

func (f *FixtureStore) SetFCMToken(_ context.Context, id uint, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FCMToken = token
	return nil
}

// Properties

func (f *FixtureStore) CreateProperty(_ context.Context, property *models.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	property.ID = f.id("property")
	stampModel(f.now(), &property.CreatedAt, &property.UpdatedAt)
	cp := *property
	f.properties[property.ID] = &cp
	return nil
}

func (f *FixtureStore) GetProperty(_ context.Context, id uint) (*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FixtureStore) UpdateProperty(_ context.Context, property *models.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.properties[property.ID]; !ok {
		return ErrNotFound
	}
	property.UpdatedAt = f.now()
	cp := *property
	f.properties[property.ID] = &cp
	return nil
}

func (f *FixtureStore) DeleteProperty(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.properties[id]; !ok {
		return ErrNotFound
	}
	delete(f.properties, id)
	return nil
}

func (f *FixtureStore) ListProperties(_ context.Context, filter PropertyFilter, page utils.Pagination) ([]models.Property, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	location := strings.ToLower(filter.Location)
	matched := []models.Property{}
	for _, p := range f.properties {
		switch {
		case filter.OwnerID != 0 && p.OwnerID != filter.OwnerID:
		case filter.Type != "" && p.Type != filter.Type:
		case location != "" && !strings.Contains(strings.ToLower(p.Location), location):
		case filter.MinPrice != nil && p.Price < *filter.MinPrice:
		case filter.MaxPrice != nil && p.Price > *filter.MaxPrice:
		default:
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	start, end := utils.PageBounds(page, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (f *FixtureStore) ListPropertiesInBox(_ context.Context, box utils.BoundingBox) ([]models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := []models.Property{}
	for _, p := range f.properties {
		if !p.HasCoordinates() {
			continue
		}
		if utils.IsPointInBoundingBox(utils.Point{Lat: *p.Latitude, Lng: *p.Longitude}, box) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

// Bookings

func (f *FixtureStore) CreateBookingIfAvailable(_ context.Context, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.properties[booking.PropertyID]; !ok {
		return ErrNotFound
	}
	for _, b := range f.bookings {
		if b.PropertyID == booking.PropertyID && b.Status.Blocks() && b.Overlaps(booking.CheckIn, booking.CheckOut) {
			return ErrOverlap
		}
	}

	booking.ID = f.id("booking")
	stampModel(f.now(), &booking.CreatedAt, &booking.UpdatedAt)
	cp := *booking
	f.bookings[booking.ID] = &cp
	return nil
}

func (f *FixtureStore) GetBooking(_ context.Context, id uint) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *FixtureStore) TransitionBooking(_ context.Context, id uint, from, to models.BookingStatus) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != from {
		return nil, ErrStateChanged
	}
	b.Status = to
	b.UpdatedAt = f.now()
	cp := *b
	return &cp, nil
}

func (f *FixtureStore) ListBookings(_ context.Context, filter BookingFilter, page utils.Pagination) ([]models.Booking, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := []models.Booking{}
	for _, b := range f.bookings {
		switch {
		case filter.OwnerID != 0 && b.OwnerID != filter.OwnerID:
		case filter.UserID != 0 && b.UserID != filter.UserID:
		case filter.PropertyID != 0 && b.PropertyID != filter.PropertyID:
		case filter.Status != "" && b.Status != filter.Status:
		default:
			matched = append(matched, *b)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	start, end := utils.PageBounds(page, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (f *FixtureStore) ListBlockingBookings(_ context.Context, propertyID uint, from, to time.Time) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := []models.Booking{}
	for _, b := range f.bookings {
		if b.PropertyID == propertyID && b.Status.Blocks() && b.Overlaps(from, to) {
			matched = append(matched, *b)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CheckIn.Before(matched[j].CheckIn) })
	return matched, nil
}

// Payments

func (f *FixtureStore) SavePendingPayment(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.payments[payment.BookingID]; ok {
		if existing.IsCompleted() {
			return ErrStateChanged
		}
		existing.GatewayOrderID = payment.GatewayOrderID
		existing.Amount = payment.Amount
		existing.Currency = payment.Currency
		existing.UpdatedAt = f.now()
		*payment = *existing
		return nil
	}

	payment.ID = f.id("payment")
	payment.Status = models.PaymentStatusPending
	stampModel(f.now(), &payment.CreatedAt, &payment.UpdatedAt)
	cp := *payment
	f.payments[payment.BookingID] = &cp
	return nil
}

func (f *FixtureStore) GetPaymentByBooking(_ context.Context, bookingID uint) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FixtureStore) GetPaymentByOrder(_ context.Context, orderID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.paymentByOrder(orderID)
	if p == nil {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FixtureStore) paymentByOrder(orderID string) *models.Payment {
	for _, p := range f.payments {
		if p.GatewayOrderID == orderID {
			return p
		}
	}
	return nil
}

func (f *FixtureStore) CompletePayment(_ context.Context, orderID, paymentID, signature string) (*models.Payment, *models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.paymentByOrder(orderID)
	if p == nil {
		return nil, nil, ErrNotFound
	}
	if p.IsCompleted() {
		return nil, nil, ErrStateChanged
	}
	b, ok := f.bookings[p.BookingID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if b.Status == models.BookingStatusRejected {
		return nil, nil, ErrStateChanged
	}

	now := f.now()
	completed := models.PaymentStatusCompleted

	p.Status = completed
	p.GatewayPaymentID = &paymentID
	p.Signature = &signature
	p.UpdatedAt = now

	b.PaymentID = &paymentID
	b.PaymentStatus = &completed
	b.Status = models.BookingStatusAccepted
	b.UpdatedAt = now

	pc, bc := *p, *b
	return &pc, &bc, nil
}

// Chats

func (f *FixtureStore) GetOrCreateChat(_ context.Context, buyerID, ownerID, propertyID uint) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.chats {
		if c.BuyerID == buyerID && c.OwnerID == ownerID && c.PropertyID == propertyID {
			cp := *c
			return &cp, nil
		}
	}

	chat := &models.Chat{BuyerID: buyerID, OwnerID: ownerID, PropertyID: propertyID}
	chat.ID = f.id("chat")
	stampModel(f.now(), &chat.CreatedAt, &chat.UpdatedAt)
	f.chats[chat.ID] = chat
	cp := *chat
	return &cp, nil
}

func (f *FixtureStore) GetChat(_ context.Context, id uint) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *FixtureStore) ListChats(_ context.Context, userID uint) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chats := []models.Chat{}
	for _, c := range f.chats {
		if c.IsParticipant(userID) {
			chats = append(chats, *c)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].UpdatedAt.After(chats[j].UpdatedAt) })
	return chats, nil
}

func (f *FixtureStore) AddChatMessage(_ context.Context, msg *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	chat, ok := f.chats[msg.ChatID]
	if !ok {
		return ErrNotFound
	}
	msg.ID = f.id("chat_message")
	msg.CreatedAt = f.now()
	chat.UpdatedAt = msg.CreatedAt
	cp := *msg
	f.chatMsgs = append(f.chatMsgs, &cp)
	return nil
}

func (f *FixtureStore) ListChatMessages(_ context.Context, chatID, readerID uint) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []models.ChatMessage{}
	for _, m := range f.chatMsgs {
		if m.ChatID != chatID {
			continue
		}
		out = append(out, *m)
		if m.SenderID != readerID {
			m.Read = true
		}
	}
	return out, nil
}

// Direct messages

func (f *FixtureStore) SaveDirectMessage(_ context.Context, msg *models.DirectMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg.ID = f.id("direct_message")
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = f.now()
	}
	cp := *msg
	f.directMsgs = append(f.directMsgs, &cp)
	return nil
}

func (f *FixtureStore) Inbox(_ context.Context, receiverID uint, page utils.Pagination) ([]models.DirectMessage, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var mine []*models.DirectMessage
	for i := len(f.directMsgs) - 1; i >= 0; i-- {
		if f.directMsgs[i].ReceiverID == receiverID {
			mine = append(mine, f.directMsgs[i])
		}
	}

	start, end := utils.PageBounds(page, len(mine))
	out := make([]models.DirectMessage, 0, end-start)
	for _, m := range mine[start:end] {
		out = append(out, *m)
		m.Read = true
	}
	return out, int64(len(mine)), nil
}

func (f *FixtureStore) Conversation(_ context.Context, userA, userB uint, limit int) ([]models.DirectMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []models.DirectMessage{}
	for _, m := range f.directMsgs {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, *m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *FixtureStore) UnreadCount(_ context.Context, receiverID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, m := range f.directMsgs {
		if m.ReceiverID == receiverID && !m.Read {
			n++
		}
	}
	return n, nil
}

// OTPs

func (f *FixtureStore) CreateOTP(_ context.Context, otp *models.OTP) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, o := range f.otps {
		if o.UserID == otp.UserID && o.Type == otp.Type {
			o.Used = true
		}
	}
	otp.ID = f.id("otp")
	stampModel(f.now(), &otp.CreatedAt, &otp.UpdatedAt)
	cp := *otp
	f.otps = append(f.otps, &cp)
	return nil
}

func (f *FixtureStore) ConsumeOTP(_ context.Context, userID uint, code string, otpType models.OTPType, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, o := range f.otps {
		if o.UserID == userID && o.Code == code && o.Type == otpType && o.IsValidAt(now) {
			o.Used = true
			return nil
		}
	}
	return ErrNotFound
}
