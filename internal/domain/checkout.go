package domain

import (
	"strings"

	"github.com/pr-poehali-dev/zdrav-project/pkg/validator"
)

// CheckoutForm holds the contact details entered during checkout.
type CheckoutForm struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"required,max=32"`
	Address string `json:"address" validate:"required,max=500"`
}

// Trimmed returns the form with surrounding whitespace removed from every field.
func (f CheckoutForm) Trimmed() CheckoutForm {
	return CheckoutForm{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Phone:   strings.TrimSpace(f.Phone),
		Address: strings.TrimSpace(f.Address),
	}
}

// Validate returns a *validator.ValidationError keyed by json field name when
// a field is blank or the email is malformed.
func (f CheckoutForm) Validate() error {
	t := f.Trimmed()
	return validator.Validate(&t)
}

// CanSubmit reports whether the form would pass Validate.
func (f CheckoutForm) CanSubmit() bool {
	return f.Validate() == nil
}

// IsZero reports whether nothing has been entered yet.
func (f CheckoutForm) IsZero() bool {
	return f == CheckoutForm{}
}
