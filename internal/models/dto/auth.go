package dto

import (
	"strings"
	"time"

	"github.com/hongminglow/portal-gateway/internal/models"
)

// LoginRequest is the body accepted by the portal's own /api/login endpoint.
// Email/ApartmentID and Phone/MemberID are accepted as aliases so every
// deployment's login form can post its native field names.
type LoginRequest struct {
	Identity    string `json:"identity"`
	Secondary   string `json:"secondary"`
	Email       string `json:"email"`
	ApartmentID string `json:"apartmentId"`
	Phone       string `json:"phone"`
	MemberID    string `json:"memberId"`
}

// Credentials folds the aliases into the two-field contract.
func (r LoginRequest) Credentials() models.Credentials {
	return models.Credentials{
		Identity:  strings.TrimSpace(firstNonEmpty(r.Identity, r.Email, r.Phone)),
		Secondary: strings.TrimSpace(firstNonEmpty(r.Secondary, r.ApartmentID, r.MemberID)),
	}
}

// LoginResponse is returned to the view after a successful login.
type LoginResponse struct {
	Session  models.Session `json:"session"`
	Redirect string         `json:"redirect"`
}

// BackendLoginReply is what the remote login webhook sends back. Field names
// differ between deployments, so several aliases are decoded.
type BackendLoginReply struct {
	Success  *bool          `json:"success"`
	Message  string         `json:"message"`
	Token    string         `json:"token"`
	User     *BackendMember `json:"user"`
	Resident *BackendMember `json:"resident"`
	Member   *BackendMember `json:"member"`
}

// BackendMember is the identity object inside a login reply.
type BackendMember struct {
	ID          any    `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	MemberID    any    `json:"member_id"`
	ApartmentID any    `json:"apartment_id"`
	Role        string `json:"role"`
	TenantID    any    `json:"tenant_id"`
	OrgID       any    `json:"organization_id"`
}

// Identity picks whichever member object the deployment populated.
func (r BackendLoginReply) Identity() *BackendMember {
	switch {
	case r.User != nil:
		return r.User
	case r.Resident != nil:
		return r.Resident
	default:
		return r.Member
	}
}

// SessionFrom converts a backend member into a Session. fallbackIdentity and
// fallbackTenant fill gaps when the backend omits them.
func (m BackendMember) SessionFrom(fallbackIdentity, fallbackTenant, token string, issuedAt time.Time) models.Session {
	identity := firstNonEmpty(m.Email, m.Phone, fallbackIdentity)
	name := firstNonEmpty(m.FullName, m.Name, identity)
	tenant := firstNonEmpty(stringify(m.TenantID), stringify(m.OrgID), fallbackTenant)
	member := firstNonEmpty(stringify(m.MemberID), stringify(m.ApartmentID), stringify(m.ID))
	return models.Session{
		Identity:    identity,
		DisplayName: name,
		Role:        models.ParseRole(m.Role),
		TenantID:    tenant,
		MemberID:    member,
		Token:       token,
		IssuedAt:    issuedAt.UTC(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
