package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
)

// ErrSubjectMismatch means sub and user_id name different users.
var ErrSubjectMismatch = errors.New("token subject does not match user_id")

// AccessTokenPayload is what the minter needs to know about the caller.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims is the token body presented by shoppers and operators.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass; jwt calls it during parsing.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token missing user_id")
	}
	if !c.Role.Mintable() {
		return fmt.Errorf("token role %q is not accepted", c.Role)
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return ErrSubjectMismatch
	}
	return nil
}

var _ jwt.ClaimsValidator = AccessTokenClaims{}
