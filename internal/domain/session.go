package domain

import (
	"time"
)

// Session is the whole storefront state of one browser: its cart, the
// checkout form and the step of the checkout flow.
type Session struct {
	ID    string       `json:"id"`
	Cart  Cart         `json:"cart"`
	Form  CheckoutForm `json:"form"`
	State FlowState    `json:"state"`

	// ResumeCheckout is set when the sheet was closed from the checkout
	// form; the next OpenCart goes straight back to the form.
	ResumeCheckout bool `json:"resume_checkout"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession returns an empty session in the browsing state.
func NewSession(id string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		State:     StateBrowsing,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Touch records activity and slides the expiry.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// Expired reports whether the session outlived its TTL.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Fire applies a flow event and reports whether the state changed.
// Events that make no sense in the current state are ignored.
func (s *Session) Fire(ev FlowEvent) bool {
	next, ok := s.transition(ev)
	if !ok {
		return false
	}

	s.ResumeCheckout = s.State == StateCheckoutForm && ev == EventCloseCart
	s.State = next
	return true
}

func (s *Session) transition(ev FlowEvent) (FlowState, bool) {
	switch s.State {
	case StateBrowsing, "":
		if ev == EventOpenCart {
			if s.ResumeCheckout && !s.Cart.IsEmpty() {
				return StateCheckoutForm, true
			}
			return StateCartOpen, true
		}
	case StateCartOpen:
		switch ev {
		case EventBack, EventCloseCart:
			return StateBrowsing, true
		case EventProceedToCheckout:
			if !s.Cart.IsEmpty() {
				return StateCheckoutForm, true
			}
		}
	case StateCheckoutForm:
		switch ev {
		case EventBack:
			return StateCartOpen, true
		case EventCloseCart:
			return StateBrowsing, true
		}
	}
	return s.State, false
}

// Submit places the order. It is accepted only from the checkout form step
// with a non-empty cart and a valid form; on rejection the session is left
// untouched so entered values survive. On success the cart is cleared, the
// form reset and the flow returns to browsing.
func (s *Session) Submit(now time.Time) (*Order, error) {
	if s.State != StateCheckoutForm {
		return nil, ErrCheckoutNotOpen
	}
	if s.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if err := s.Form.Validate(); err != nil {
		return nil, err
	}

	order := &Order{
		SessionID:   s.ID,
		Items:       s.Cart.Snapshot(),
		Total:       s.Cart.TotalPrice(),
		Contact:     s.Form.Trimmed(),
		SubmittedAt: now,
	}

	s.Cart.Clear()
	s.Form = CheckoutForm{}
	s.State = StateBrowsing
	s.ResumeCheckout = false

	return order, nil
}

// Clone returns a deep copy, so callers never share a cart backing array.
func (s *Session) Clone() *Session {
	c := *s
	c.Cart.Items = s.Cart.Snapshot()
	return &c
}
