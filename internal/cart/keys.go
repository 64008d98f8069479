package cart

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
)

// LineKey addresses a cart line: "<productId>" or "<productId>:<variantId>".
func LineKey(productID uuid.UUID, variantID *uuid.UUID) string {
	if variantID == nil || *variantID == uuid.Nil {
		return productID.String()
	}
	return productID.String() + ":" + variantID.String()
}

// ParseLineKey splits a line key into its product and optional variant ids.
func ParseLineKey(key string) (uuid.UUID, *uuid.UUID, error) {
	raw := strings.TrimSpace(key)
	productPart, variantPart, hasVariant := strings.Cut(raw, ":")
	productID, err := uuid.Parse(productPart)
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid cart item key %q", key)
	}
	if !hasVariant {
		return productID, nil, nil
	}
	variantID, err := uuid.Parse(variantPart)
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid cart item key %q", key)
	}
	return productID, &variantID, nil
}

// CanonicalKey re-renders a client supplied key so lookups match stored keys.
func CanonicalKey(key string) (string, error) {
	productID, variantID, err := ParseLineKey(key)
	if err != nil {
		return "", err
	}
	return LineKey(productID, variantID), nil
}
