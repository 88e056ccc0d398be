package server

import (
	"context"
	"strings"

	"github.com/platinummonkey/workos-sso/pkg/sso"
)

// User is the authenticated identity returned by the callback route
type User struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Name           string   `json:"name,omitempty"`
	OrganizationID string   `json:"organization_id,omitempty"`
	ConnectionID   string   `json:"connection_id,omitempty"`
	Groups         []string `json:"groups,omitempty"`
}

// AuthInfo describes how the user authenticated
type AuthInfo struct {
	Strategy       string `json:"strategy"`
	ConnectionType string `json:"connection_type,omitempty"`
	IdpID          string `json:"idp_id,omitempty"`
}

// DomainVerifier accepts profiles whose email domain is allowed
type DomainVerifier struct {
	allowed map[string]struct{}
}

// NewDomainVerifier creates a verifier for the given domains. With no domains
// every profile that has an email is accepted.
func NewDomainVerifier(domains ...string) *DomainVerifier {
	v := &DomainVerifier{}
	if len(domains) > 0 {
		v.allowed = make(map[string]struct{}, len(domains))
		for _, d := range domains {
			v.allowed[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
		}
	}
	return v
}

// Verify implements sso.Verifier. A rejected profile yields no user, and so
// does one whose IdP reports the email as unverified.
func (v *DomainVerifier) Verify(ctx context.Context, in sso.VerifyInput) (sso.Verification, error) {
	p := in.Profile
	if p.Email == "" {
		return sso.Verification{}, nil
	}
	if p.EmailVerified != nil && !*p.EmailVerified {
		return sso.Verification{}, nil
	}

	if v.allowed != nil {
		_, domain, ok := strings.Cut(p.Email, "@")
		if !ok {
			return sso.Verification{}, nil
		}
		if _, ok := v.allowed[strings.ToLower(domain)]; !ok {
			return sso.Verification{}, nil
		}
	}

	user := &User{
		ID:             p.ID,
		Email:          p.Email,
		Name:           strings.TrimSpace(p.FirstName + " " + p.LastName),
		OrganizationID: p.OrganizationID,
		ConnectionID:   p.ConnectionID,
		Groups:         p.Groups,
	}
	info := &AuthInfo{
		Strategy:       sso.StrategyName,
		ConnectionType: p.ConnectionType,
		IdpID:          p.IdpID,
	}
	return sso.Verification{User: user, Info: info}, nil
}
