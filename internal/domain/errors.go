package domain

import (
	"fmt"

	apperrors "github.com/pr-poehali-dev/zdrav-project/pkg/errors"
)

var (
	// ErrEmptyCart rejects checkout of a cart without lines.
	ErrEmptyCart = fmt.Errorf("cart is empty: %w", apperrors.ErrConflict)

	// ErrCheckoutNotOpen rejects a submit outside the checkout form step.
	ErrCheckoutNotOpen = fmt.Errorf("checkout form is not open: %w", apperrors.ErrConflict)
)
