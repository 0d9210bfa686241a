package domain

import "fmt"

// FlowState is the step of the checkout flow a session is in.
type FlowState string

const (
	StateBrowsing     FlowState = "browsing"
	StateCartOpen     FlowState = "cart_open"
	StateCheckoutForm FlowState = "checkout_form"
)

// FlowEvent is a user intent that may move the checkout flow.
type FlowEvent string

const (
	EventOpenCart          FlowEvent = "open"
	EventCloseCart         FlowEvent = "close"
	EventBack              FlowEvent = "back"
	EventProceedToCheckout FlowEvent = "proceed"
)

// ParseFlowEvent maps the event names used in URLs to a FlowEvent.
func ParseFlowEvent(s string) (FlowEvent, error) {
	switch ev := FlowEvent(s); ev {
	case EventOpenCart, EventCloseCart, EventBack, EventProceedToCheckout:
		return ev, nil
	}
	return "", fmt.Errorf("unknown checkout event %q", s)
}

// SheetOpen reports whether the cart sheet is visible in this state.
func (s FlowState) SheetOpen() bool {
	return s == StateCartOpen || s == StateCheckoutForm
}
