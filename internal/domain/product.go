package domain

// Product is an immutable catalog entry. Price is in whole rubles.
type Product struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Image       string `json:"image"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
