package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/hongminglow/portal-gateway/internal/models"
)

var (
	// ErrInvalidSeal means a persisted session failed verification.
	ErrInvalidSeal = errors.New("sealed session is invalid")
	// ErrSealExpired means a persisted session outlived its TTL.
	ErrSealExpired = errors.New("sealed session expired")
)

// Sealer signs sessions before they reach durable storage and verifies them
// on restore, so an edited record never becomes an authenticated session.
type Sealer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type sessionClaims struct {
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Tenant   string `json:"tenant"`
	Member   string `json:"member,omitempty"`
	Upstream string `json:"upstream,omitempty"`
	jwt.RegisteredClaims
}

// NewSealer derives a deployment-specific signing key from secret. A zero ttl
// keeps sessions until logout.
func NewSealer(secret, deployment string, ttl time.Duration) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("portal-session:"+deployment))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return &Sealer{
		key:    key,
		issuer: "portal-gateway/" + deployment,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Seal issues a signed token carrying the session.
func (s *Sealer) Seal(session models.Session) (string, error) {
	issued := session.IssuedAt
	if issued.IsZero() {
		issued = s.now()
	}
	claims := sessionClaims{
		Name:     session.DisplayName,
		Role:     string(session.Role),
		Tenant:   session.TenantID,
		Member:   session.MemberID,
		Upstream: session.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			Subject:  session.Identity,
			IssuedAt: jwt.NewNumericDate(issued),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issued.Add(s.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Open verifies a sealed token and returns the session inside it.
func (s *Sealer) Open(sealed string) (models.Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(sealed, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Session{}, ErrSealExpired
		}
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidSeal, err)
	}
	if claims.Subject == "" {
		return models.Session{}, fmt.Errorf("%w: missing identity", ErrInvalidSeal)
	}
	session := models.Session{
		Identity:    claims.Subject,
		DisplayName: claims.Name,
		Role:        models.ParseRole(claims.Role),
		TenantID:    claims.Tenant,
		MemberID:    claims.Member,
		Token:       claims.Upstream,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return session, nil
}
