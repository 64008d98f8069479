package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
)

// DefaultPaymentMethod applies when checkout omits a method.
const DefaultPaymentMethod = PaymentMethodCOD

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodCOD, PaymentMethodBankTransfer, PaymentMethodCard:
		return true
	default:
		return false
	}
}

// CollectedOnDelivery reports whether money changes hands at the door.
func (p PaymentMethod) CollectedOnDelivery() bool {
	return p == PaymentMethodCOD
}

// ParsePaymentMethod lowercases and trims before matching; blank input
// yields DefaultPaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return DefaultPaymentMethod, nil
	}
	p := PaymentMethod(raw)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return p, nil
}
