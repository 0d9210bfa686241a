package domain

import "time"

// Order is the snapshot taken at a successful checkout. It is published as
// an event and returned to the caller; it is not stored.
type Order struct {
	SessionID   string       `json:"session_id"`
	Items       []CartItem   `json:"items"`
	Total       int64        `json:"total"`
	Contact     CheckoutForm `json:"contact"`
	SubmittedAt time.Time    `json:"submitted_at"`
}
