package models

import (
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Payment amounts are stored in minor currency units.
type Payment struct {
	gorm.Model
	BookingID        uint          `json:"bookingId" gorm:"uniqueIndex;not null"`
	GatewayOrderID   string        `json:"gatewayOrderId" gorm:"uniqueIndex;not null"`
	GatewayPaymentID *string       `json:"gatewayPaymentId,omitempty"`
	Signature        *string       `json:"-"`
	Amount           int64         `json:"amount" gorm:"not null"`
	Currency         string        `json:"currency" gorm:"not null"`
	Status           PaymentStatus `json:"status" gorm:"not null;default:'pending'"`
}

func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}
