package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

var (
	ErrMissingUser     = errors.New("token is missing user_id")
	ErrUnknownRole     = errors.New("token carries an unknown role")
	ErrSubjectMismatch = errors.New("token subject does not match user_id")
)

// Claims is the access token body signed by the identity service.
type Claims struct {
	UserID int64          `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser once the registered claims pass.
func (c *Claims) Validate() error {
	if c.UserID <= 0 {
		return ErrMissingUser
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("%w %q", ErrUnknownRole, c.Role)
	}
	if c.Subject != "" && c.Subject != strconv.FormatInt(c.UserID, 10) {
		return ErrSubjectMismatch
	}
	return nil
}
