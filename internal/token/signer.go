// Package token issues and verifies stateless session tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Proton-105/profile-service/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the session claims; the subject is the user's external id.
type Claims struct {
	Name         string `json:"name"`
	ProviderID   string `json:"providerId,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	Provider     string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the external user id carried by the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// Issued is a signed token plus its expiry.
type Issued struct {
	Value     string
	ExpiresAt time.Time
}

// Signer signs HS256 tokens. Verification checks signature and expiry only.
type Signer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration, issuer string) *Signer {
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue signs a token for user. provider names the identity provider, e.g. "kakao".
func (s *Signer) Issue(user *domain.User, provider string) (Issued, error) {
	if user == nil || user.ExternalID == "" {
		return Issued{}, errors.New("issue token: user without id")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Name:         user.Name,
		ProviderID:   user.ProviderID,
		ProfileImage: user.ProfileImage,
		Provider:     provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ExternalID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}

	return Issued{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify parses raw and returns its claims. It does not touch any store.
func (s *Signer) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
