package utils

import "strings"

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
