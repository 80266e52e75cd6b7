package utils

import (
	"math"
	"time"
)

// StayQuote contains the calculated price of a stay and its breakdown
type StayQuote struct {
	Days        int     `json:"days"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalAmount float64 `json:"totalAmount"`
}

// CalculateStay charges the unit price for every started day between
// checkIn and checkOut.
func CalculateStay(checkIn, checkOut time.Time, unitPrice float64) StayQuote {
	days := int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
	if days < 0 {
		days = 0
	}

	total := math.Round(float64(days)*unitPrice*100) / 100

	return StayQuote{
		Days:        days,
		UnitPrice:   unitPrice,
		TotalAmount: total,
	}
}

// ToMinorUnits converts an amount to integer minor currency units.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
