package service

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const cardNumberPrefix = "MC-"

var cardNumberPattern = regexp.MustCompile(`^MC-[0-9A-F]{8}$`)

// CardValidator issues and checks card numbers of the form MC-XXXXXXXX.
type CardValidator struct{}

// NewCardValidator creates a new card validator.
func NewCardValidator() *CardValidator {
	return &CardValidator{}
}

// Generate returns a new random card number.
func (v *CardValidator) Generate() string {
	return cardNumberPrefix + strings.ToUpper(uuid.NewString()[:8])
}

// Normalize trims and upper-cases a card number as typed by an operator.
func (v *CardValidator) Normalize(cardNumber string) string {
	return strings.ToUpper(strings.TrimSpace(cardNumber))
}

// Validate reports whether cardNumber is well formed.
func (v *CardValidator) Validate(cardNumber string) bool {
	return cardNumberPattern.MatchString(cardNumber)
}

// MaskCardNumber masks a card number, showing only last 4 characters.
func (v *CardValidator) MaskCardNumber(cardNumber string) string {
	if len(cardNumber) < 4 {
		return "****"
	}
	return cardNumberPrefix + "****" + cardNumber[len(cardNumber)-4:]
}
