package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type BookingService struct {
	store    *store.Store
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewBookingService(s *store.Store, notifier Notifier, log logrus.FieldLogger) *BookingService {
	return &BookingService{store: s, notifier: notifier, log: log, now: time.Now}
}

// WithClock replaces the clock used for the check-in-in-the-past rule.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// parseBookingDate accepts a calendar date or an RFC3339 timestamp. dateOnly
// reports which form was given.
func parseBookingDate(value string) (t time.Time, dateOnly bool, err error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, value)
	return t, false, err
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type stayRange struct {
	checkIn  time.Time
	checkOut time.Time
}

// validateDates applies the date rules shared by booking and quoting.
func (s *BookingService) validateDates(checkInStr, checkOutStr string) (stayRange, error) {
	if strings.TrimSpace(checkInStr) == "" || strings.TrimSpace(checkOutStr) == "" {
		return stayRange{}, apperr.Validation("checkIn and checkOut are required")
	}
	checkIn, dateOnly, err := parseBookingDate(checkInStr)
	if err != nil {
		return stayRange{}, apperr.Validation("Invalid checkIn date")
	}
	checkOut, _, err := parseBookingDate(checkOutStr)
	if err != nil {
		return stayRange{}, apperr.Validation("Invalid checkOut date")
	}

	if !checkOut.After(checkIn) {
		return stayRange{}, apperr.Validation("Check-out date must be after check-in date")
	}

	now := s.now()
	past := checkIn.Before(now)
	if dateOnly {
		past = startOfDay(checkIn).Before(startOfDay(now))
	}
	if past {
		return stayRange{}, apperr.Validation("Check-in date cannot be in the past")
	}

	return stayRange{checkIn: checkIn, checkOut: checkOut}, nil
}

func (s *BookingService) loadProperty(ctx context.Context, propertyID uint) (*models.Property, error) {
	property, err := s.store.GetProperty(ctx, propertyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Property not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load property", err)
	}
	return property, nil
}

// Create validates a booking request and records it as pending.
func (s *BookingService) Create(ctx context.Context, propertyID, requesterID uint, checkInStr, checkOutStr string) (*models.Booking, error) {
	stay, err := s.validateDates(checkInStr, checkOutStr)
	if err != nil {
		return nil, err
	}

	property, err := s.loadProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.OwnerID == requesterID {
		return nil, apperr.Conflict("Cannot book your own property")
	}

	quote := utils.CalculateStay(stay.checkIn, stay.checkOut, property.Price)
	booking := &models.Booking{
		PropertyID:  property.ID,
		UserID:      requesterID,
		OwnerID:     property.OwnerID,
		CheckIn:     stay.checkIn,
		CheckOut:    stay.checkOut,
		Days:        quote.Days,
		TotalAmount: quote.TotalAmount,
		Status:      models.BookingStatusPending,
	}

	switch err := s.store.CreateBookingIfAvailable(ctx, booking); {
	case errors.Is(err, store.ErrOverlap):
		return nil, apperr.Conflict("Property is not available for the selected dates")
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("Property not found")
	case err != nil:
		return nil, apperr.Internal("failed to create booking", err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"property_id": property.ID,
		"user_id":     requesterID,
	}).Info("booking requested")

	notify(ctx, s.notifier, s.log, property.OwnerID, Notification{
		Type:  NotificationBookingRequested,
		Title: "New booking request",
		Body: fmt.Sprintf("%s requested from %s to %s",
			property.Title, stay.checkIn.Format(dateLayout), stay.checkOut.Format(dateLayout)),
		Path: "/bookings",
		Data: map[string]string{"bookingId": fmt.Sprint(booking.ID)},
	})

	return booking, nil
}

// Quote prices a stay without booking it.
func (s *BookingService) Quote(ctx context.Context, propertyID uint, checkInStr, checkOutStr string) (utils.StayQuote, error) {
	stay, err := s.validateDates(checkInStr, checkOutStr)
	if err != nil {
		return utils.StayQuote{}, err
	}
	property, err := s.loadProperty(ctx, propertyID)
	if err != nil {
		return utils.StayQuote{}, err
	}
	return utils.CalculateStay(stay.checkIn, stay.checkOut, property.Price), nil
}

type BookedRange struct {
	CheckIn  time.Time            `json:"checkIn"`
	CheckOut time.Time            `json:"checkOut"`
	Status   models.BookingStatus `json:"status"`
}

// Availability lists the ranges of a property held by pending or accepted
// bookings between from and to.
func (s *BookingService) Availability(ctx context.Context, propertyID uint, fromStr, toStr string) ([]BookedRange, error) {
	if _, err := s.loadProperty(ctx, propertyID); err != nil {
		return nil, err
	}

	from, to := startOfDay(s.now()), startOfDay(s.now()).AddDate(0, 3, 0)
	if fromStr != "" {
		t, _, err := parseBookingDate(fromStr)
		if err != nil {
			return nil, apperr.Validation("Invalid from date")
		}
		from = t
	}
	if toStr != "" {
		t, _, err := parseBookingDate(toStr)
		if err != nil {
			return nil, apperr.Validation("Invalid to date")
		}
		to = t
	}
	if to.Before(from) {
		return nil, apperr.Validation("to must not be before from")
	}

	bookings, err := s.store.ListBlockingBookings(ctx, propertyID, from, to)
	if err != nil {
		return nil, apperr.Internal("failed to load bookings", err)
	}
	ranges := make([]BookedRange, 0, len(bookings))
	for _, b := range bookings {
		ranges = append(ranges, BookedRange{CheckIn: b.CheckIn, CheckOut: b.CheckOut, Status: b.Status})
	}
	return ranges, nil
}

func (s *BookingService) Accept(ctx context.Context, bookingID, callerID uint) (*models.Booking, error) {
	return s.transition(ctx, bookingID, callerID, models.BookingStatusAccepted)
}

func (s *BookingService) Reject(ctx context.Context, bookingID, callerID uint) (*models.Booking, error) {
	return s.transition(ctx, bookingID, callerID, models.BookingStatusRejected)
}

// transition moves a pending booking to its final status. Only the owner may
// decide, and only once.
func (s *BookingService) transition(ctx context.Context, bookingID, callerID uint, to models.BookingStatus) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Booking not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}
	if booking.OwnerID != callerID {
		return nil, apperr.Authorization("Only the property owner can update this booking")
	}
	if booking.Status != models.BookingStatusPending {
		return nil, apperr.Conflict(fmt.Sprintf("Booking has already been %s", booking.Status))
	}

	updated, err := s.store.TransitionBooking(ctx, bookingID, models.BookingStatusPending, to)
	switch {
	case errors.Is(err, store.ErrStateChanged):
		current, getErr := s.store.GetBooking(ctx, bookingID)
		if getErr != nil {
			return nil, apperr.Conflict("Booking has already been decided")
		}
		return nil, apperr.Conflict(fmt.Sprintf("Booking has already been %s", current.Status))
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("Booking not found")
	case err != nil:
		return nil, apperr.Internal("failed to update booking", err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": bookingID, "status": to}).Info("booking decided")

	n := Notification{
		Type:  NotificationBookingAccepted,
		Title: "Booking accepted",
		Body:  "Your booking request was accepted. You can now complete the payment.",
		Path:  "/bookings/my-bookings",
		Data:  map[string]string{"bookingId": fmt.Sprint(bookingID)},
	}
	if to == models.BookingStatusRejected {
		n.Type = NotificationBookingRejected
		n.Title = "Booking rejected"
		n.Body = "Your booking request was declined by the owner."
	}
	notify(ctx, s.notifier, s.log, updated.UserID, n)

	return updated, nil
}

// Get returns a booking to its requester or the property owner.
func (s *BookingService) Get(ctx context.Context, bookingID, callerID uint) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Booking not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load booking", err)
	}
	if !booking.IsParticipant(callerID) {
		return nil, apperr.Authorization("You do not have access to this booking")
	}
	return booking, nil
}

func parseStatusFilter(status string) (models.BookingStatus, error) {
	if status == "" {
		return "", nil
	}
	s := models.BookingStatus(strings.ToLower(status))
	if !s.Valid() {
		return "", apperr.Validation("status must be one of pending, accepted, rejected")
	}
	return s, nil
}

// ListForOwner pages through requests made against the caller's properties.
func (s *BookingService) ListForOwner(ctx context.Context, ownerID uint, status string, page utils.Pagination) ([]models.Booking, utils.PageMeta, error) {
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, utils.PageMeta{}, err
	}
	return s.list(ctx, store.BookingFilter{OwnerID: ownerID, Status: st}, page)
}

// ListForSeeker pages through the caller's own requests.
func (s *BookingService) ListForSeeker(ctx context.Context, userID uint, status string, page utils.Pagination) ([]models.Booking, utils.PageMeta, error) {
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, utils.PageMeta{}, err
	}
	return s.list(ctx, store.BookingFilter{UserID: userID, Status: st}, page)
}

func (s *BookingService) list(ctx context.Context, filter store.BookingFilter, page utils.Pagination) ([]models.Booking, utils.PageMeta, error) {
	bookings, total, err := s.store.ListBookings(ctx, filter, page)
	if err != nil {
		return nil, utils.PageMeta{}, apperr.Internal("failed to list bookings", err)
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, utils.NewPageMeta(page, total), nil
}
