package enums

// CartItemStatus is computed when a cart is read with live prices.
type CartItemStatus string

const (
	CartItemStatusOK                CartItemStatus = "ok"
	CartItemStatusUnavailable       CartItemStatus = "unavailable"
	CartItemStatusInsufficientStock CartItemStatus = "insufficient_stock"
)

// String implements fmt.Stringer.
func (s CartItemStatus) String() string {
	return string(s)
}

// Purchasable reports whether the line counts towards the live estimate.
func (s CartItemStatus) Purchasable() bool {
	return s == CartItemStatusOK
}
