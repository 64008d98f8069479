package types

import "strings"

// ShippingInfo holds the contact and delivery fields captured at checkout.
// Orders embed it with the shipping_ column prefix.
type ShippingInfo struct {
	FullName    string `json:"full_name" gorm:"column:full_name" validate:"required,max=120"`
	Phone       string `json:"phone" gorm:"column:phone" validate:"required,min=8,max=20"`
	Email       string `json:"email,omitempty" gorm:"column:email" validate:"omitempty,email,max=254"`
	AddressLine string `json:"address_line" gorm:"column:address_line" validate:"required,max=255"`
	Ward        string `json:"ward,omitempty" gorm:"column:ward" validate:"max=120"`
	District    string `json:"district,omitempty" gorm:"column:district" validate:"max=120"`
	City        string `json:"city" gorm:"column:city" validate:"required,max=120"`
}

// Normalize trims every field in place.
func (s *ShippingInfo) Normalize() {
	s.FullName = strings.TrimSpace(s.FullName)
	s.Phone = strings.TrimSpace(s.Phone)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.AddressLine = strings.TrimSpace(s.AddressLine)
	s.Ward = strings.TrimSpace(s.Ward)
	s.District = strings.TrimSpace(s.District)
	s.City = strings.TrimSpace(s.City)
}

// ShippingPatch carries a partial customer-info edit. Nil fields are left unchanged.
type ShippingPatch struct {
	FullName    *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=120"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,min=8,max=20"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	AddressLine *string `json:"address_line,omitempty" validate:"omitempty,min=1,max=255"`
	Ward        *string `json:"ward,omitempty" validate:"omitempty,max=120"`
	District    *string `json:"district,omitempty" validate:"omitempty,max=120"`
	City        *string `json:"city,omitempty" validate:"omitempty,min=1,max=120"`
	Note        *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ShippingPatch) IsEmpty() bool {
	return p.FullName == nil && p.Phone == nil && p.Email == nil && p.AddressLine == nil &&
		p.Ward == nil && p.District == nil && p.City == nil && p.Note == nil
}

// Apply copies the set fields onto info.
func (p ShippingPatch) Apply(info *ShippingInfo) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&info.FullName, p.FullName)
	set(&info.Phone, p.Phone)
	set(&info.Email, p.Email)
	set(&info.AddressLine, p.AddressLine)
	set(&info.Ward, p.Ward)
	set(&info.District, p.District)
	set(&info.City, p.City)
}
