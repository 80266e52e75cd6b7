package utils

import (
	"crypto/sha256"
	"fmt"
	"time"
)

const (
	OTPExpiration = 15 * time.Minute
)

// GenerateOTP derives a 6-digit code from the given unique key.
// The key should change with each request, e.g. email plus a random nonce.
func GenerateOTP(uniqueKey string) string {
	h := sha256.New()
	h.Write([]byte(uniqueKey))
	hash := h.Sum(nil)

	num := uint32(hash[0])<<24 | uint32(hash[1])<<16 | uint32(hash[2])<<8 | uint32(hash[3])

	otp := 100000 + (num % 900000)

	return fmt.Sprintf("%06d", otp)
}
