package domain

// NotificationKind selects how a notification is styled.
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
)

// Texts shown to the shopper.
const (
	MsgAddedToCart     = "Товар добавлен в корзину"
	MsgRemovedFromCart = "Товар удален из корзины"
	MsgOrderPlaced     = "Заказ успешно оформлен! Мы свяжемся с вами в ближайшее время."
	MsgQuantityLimit   = "Достигнуто максимальное количество товара"
)

// Notification is a transient message for one session.
type Notification struct {
	Message string           `json:"message"`
	Kind    NotificationKind `json:"kind"`
}

// Success builds a success notification.
func Success(msg string) Notification {
	return Notification{Message: msg, Kind: KindSuccess}
}

// Failure builds an error notification.
func Failure(msg string) Notification {
	return Notification{Message: msg, Kind: KindError}
}
