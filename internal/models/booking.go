package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "pending"
	BookingStatusAccepted BookingStatus = "accepted"
	BookingStatusRejected BookingStatus = "rejected"
)

// BlockingStatuses are the statuses that reserve a date range.
var BlockingStatuses = []BookingStatus{BookingStatusPending, BookingStatusAccepted}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusAccepted, BookingStatusRejected:
		return true
	}
	return false
}

// Blocks reports whether a booking in this status holds its dates.
func (s BookingStatus) Blocks() bool {
	return s == BookingStatusPending || s == BookingStatusAccepted
}

type Booking struct {
	gorm.Model
	PropertyID    uint           `json:"propertyId" gorm:"index;not null"`
	UserID        uint           `json:"userId" gorm:"index;not null"`
	OwnerID       uint           `json:"ownerId" gorm:"index;not null"`
	CheckIn       time.Time      `json:"checkIn" gorm:"not null"`
	CheckOut      time.Time      `json:"checkOut" gorm:"not null"`
	Days          int            `json:"days" gorm:"not null"`
	TotalAmount   float64        `json:"totalAmount" gorm:"not null"`
	Status        BookingStatus  `json:"status" gorm:"not null;default:'pending'"`
	PaymentID     *string        `json:"paymentId,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
}

// Overlaps applies the inclusive range test used for availability.
func (b *Booking) Overlaps(checkIn, checkOut time.Time) bool {
	return !b.CheckIn.After(checkOut) && !b.CheckOut.Before(checkIn)
}

// IsParticipant reports whether the user is the requester or the owner.
func (b *Booking) IsParticipant(userID uint) bool {
	return b.UserID == userID || b.OwnerID == userID
}
