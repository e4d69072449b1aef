package models

import "time"

// Session captures the authenticated identity for the running portal.
// Values are treated as immutable; a new Session replaces the old one.
type Session struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	TenantID    string    `json:"tenant_id"`
	MemberID    string    `json:"member_id,omitempty"`
	Token       string    `json:"-"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Credentials are the two login fields. Their meaning depends on the
// deployment: email and apartment id, or phone and member id.
type Credentials struct {
	Identity  string `json:"identity"`
	Secondary string `json:"secondary"`
}

// Profile is the server-sent member profile. Empty fields mean "unchanged".
type Profile struct {
	DisplayName string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role,omitempty"`
}

// WithProfile returns a copy of s with the non-empty profile fields merged in.
func (s Session) WithProfile(p Profile) Session {
	out := s
	if p.DisplayName != "" {
		out.DisplayName = p.DisplayName
	}
	if p.Role != "" {
		out.Role = ParseRole(p.Role)
	}
	return out
}
