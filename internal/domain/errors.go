package domain

import "fmt"

// Category classifies an error for the client-facing structured error
// object and the propagation policy attached to it.
type Category string

const (
	CategoryAuth       Category = "authentication"
	CategoryValidation Category = "validation"
	CategoryRateLimit  Category = "rate_limit"
	CategorySystem     Category = "system"
	CategoryNetwork    Category = "network"
)

// Error is what a client sees instead of a raw internal error.
type Error struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func Errorf(cat Category, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}
