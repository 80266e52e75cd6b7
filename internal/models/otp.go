package models

import (
	"time"

	"gorm.io/gorm"
)

// OTPType defines the purpose of the OTP
type OTPType string

const (
	OTPTypePasswordReset OTPType = "password_reset"
)

// OTP model for storing one-time passwords
type OTP struct {
	gorm.Model
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	Code      string    `json:"-" gorm:"not null"`
	Type      OTPType   `json:"type" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used" gorm:"default:false"`
}

// IsValidAt reports whether the OTP can still be redeemed at t.
func (o *OTP) IsValidAt(t time.Time) bool {
	return !o.Used && t.Before(o.ExpiresAt)
}
