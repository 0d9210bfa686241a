package view

import (
	"errors"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
	"github.com/pr-poehali-dev/zdrav-project/pkg/validator"
)

// Messages shown above the checkout form when a submit is rejected for a
// reason other than an invalid field.
const (
	MsgEmptyCart       = "Корзина пуста"
	MsgCheckoutNotOpen = "Оформление заказа не начато"
	MsgFixFields       = "Проверьте правильность заполнения полей"
)

// FieldErrors turns a form validation error into Russian messages keyed by
// input name. It returns nil for any other error.
func FieldErrors(err error) map[string]string {
	var ve *validator.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}

	out := make(map[string]string, len(ve.Errors))
	for _, fe := range ve.Errors {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = fieldMessage(fe.Tag())
	}
	return out
}

func fieldMessage(tag string) string {
	switch tag {
	case "required":
		return "Заполните это поле"
	case "email":
		return "Введите корректный email"
	case "max":
		return "Слишком длинное значение"
	default:
		return "Некорректное значение"
	}
}

// FormError maps a rejected submit to the message shown above the form.
func FormError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrEmptyCart):
		return MsgEmptyCart
	case errors.Is(err, domain.ErrCheckoutNotOpen):
		return MsgCheckoutNotOpen
	case FieldErrors(err) != nil:
		return MsgFixFields
	default:
		return ""
	}
}
