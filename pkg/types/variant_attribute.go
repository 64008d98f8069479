package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// VariantAttribute is one name/value pair describing a variant, e.g. size=XL.
type VariantAttribute struct {
	Name  string `json:"name" validate:"required,max=60"`
	Value string `json:"value" validate:"required,max=120"`
}

// VariantAttributes is persisted as a JSON array.
type VariantAttributes []VariantAttribute

// Value serializes the attributes to JSON text.
func (a VariantAttributes) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes a JSON array column.
func (a *VariantAttributes) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("variant attributes: unsupported scan type %T", value)
	}

	var decoded VariantAttributes
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*a = decoded
	return nil
}
