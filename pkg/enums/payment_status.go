package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks whether an order has been paid for.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusPartial  PaymentStatus = "partial"
)

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusPartial:
		return true
	default:
		return false
	}
}

// ManuallySettable reports whether staff may record this status directly.
// Refunded only results from cancelling or failing a paid order.
func (p PaymentStatus) ManuallySettable() bool {
	return p.IsValid() && p != PaymentStatusRefunded
}

// Final reports whether the status can no longer change.
func (p PaymentStatus) Final() bool {
	return p == PaymentStatusRefunded
}

// AfterRelease is the status an order carries once its stock is released.
// Fully paid orders flip to refunded; partial payments are left for a manual
// refund.
func (p PaymentStatus) AfterRelease() PaymentStatus {
	if p == PaymentStatusPaid {
		return PaymentStatusRefunded
	}
	return p
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	p := PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return p, nil
}
