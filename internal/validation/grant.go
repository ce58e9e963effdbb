// Package validation checks and sanitizes inbound grant requests before
// they reach the engine.
package validation

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/seralabs/tokend/internal/grant"
)

// SanitizeGrant normalizes a parsed request in place: fields are trimmed
// and the username (an email) is lowercased.
func SanitizeGrant(req *grant.Request) {
	req.GrantType = strings.TrimSpace(req.GrantType)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	req.Code = strings.TrimSpace(req.Code)
	// Password is deliberately left untouched.
}

// ValidateGrant verifies the fields required by the request's grant type.
// Unknown grant types pass through: the dispatcher owns that rejection.
func ValidateGrant(req grant.Request) error {
	if req.GrantType == "" {
		return fmt.Errorf("grant_type is required")
	}
	switch req.GrantType {
	case grant.TypePassword:
		if req.Username == "" {
			return fmt.Errorf("username is required")
		}
		if _, err := mail.ParseAddress(req.Username); err != nil {
			return fmt.Errorf("username must be an email address")
		}
		if req.Password == "" {
			return fmt.Errorf("password is required")
		}
		if req.ClientID == "" {
			return fmt.Errorf("client_id is required")
		}
	case grant.TypeRefresh:
		if req.RefreshToken == "" {
			return fmt.Errorf("refresh_token is required")
		}
	case grant.TypeFacebook:
		if req.Code == "" {
			return fmt.Errorf("code is required")
		}
	}
	return nil
}
