package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/token"
)

const (
	// ContextUserIDKey is the gin context key for the authenticated external user id.
	ContextUserIDKey = "userID"
	// ContextClaimsKey holds the verified token claims when the caller used a bearer token.
	ContextClaimsKey = "claims"

	DefaultGatewayHeader = "X-User-Id"
)

// TokenVerifier validates a raw session token.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Authenticator resolves the caller's user id from a bearer token or, when trusted,
// from the header an upstream gateway sets after verifying the caller itself.
type Authenticator struct {
	verifier      TokenVerifier
	trustGateway  bool
	gatewayHeader string
}

func NewAuthenticator(verifier TokenVerifier, trustGateway bool, gatewayHeader string) *Authenticator {
	if gatewayHeader == "" {
		gatewayHeader = DefaultGatewayHeader
	}
	return &Authenticator{
		verifier:      verifier,
		trustGateway:  trustGateway,
		gatewayHeader: gatewayHeader,
	}
}

// RequireIdentity rejects requests without a verifiable identity with 401.
func (a *Authenticator) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.identify(c); err != nil {
			abort(c, err)
			return
		}
		if _, ok := UserID(c); !ok {
			abort(c, apperrors.NewUnauthenticatedError("authentication required"))
			return
		}
		c.Next()
	}
}

// OptionalIdentity records the identity when one is present and never rejects.
func (a *Authenticator) OptionalIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = a.identify(c)
		c.Next()
	}
}

// identify stores the caller identity in c. A malformed or invalid bearer token is an error
// even when the gateway header is also present.
func (a *Authenticator) identify(c *gin.Context) *apperrors.AppError {
	if header := c.GetHeader("Authorization"); header != "" {
		raw, ok := bearerToken(header)
		if !ok {
			return apperrors.NewUnauthenticatedError("malformed authorization header")
		}

		claims, err := a.verifier.Verify(raw)
		if err != nil {
			return apperrors.WrapUnauthenticated("invalid or expired token", err)
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextUserIDKey, claims.UserID())
		return nil
	}

	if a.trustGateway {
		if userID := strings.TrimSpace(c.GetHeader(a.gatewayHeader)); userID != "" {
			c.Set(ContextUserIDKey, userID)
		}
	}

	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// UserID returns the authenticated external user id.
func UserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ContextUserIDKey)
	return userID, userID != ""
}

// Claims returns the verified token claims, or nil when the identity came from the gateway header.
func Claims(c *gin.Context) *token.Claims {
	value, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*token.Claims)
	return claims
}
