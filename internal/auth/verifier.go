package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// tokenClaims is the internal claims type used for JWT parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	SchoolID string `json:"schoolId"`
}

// Verifier validates HS256-signed credentials and extracts the caller's
// identity. The subject claim carries the user ID.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier builds a Verifier for the given shared secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// NewVerifierWithClock is test-only for deterministic expiry checks.
func NewVerifierWithClock(secret []byte, now func() time.Time) *Verifier {
	return &Verifier{secret: secret, now: now}
}

// Verify parses and validates a signed token, returning the principal it
// identifies. All failures are ErrUnauthenticated.
func (v *Verifier) Verify(token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, fmt.Errorf("%w: credential is required", domain.ErrUnauthenticated)
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return domain.Principal{}, mapJWTError(err)
	}

	principal := domain.Principal{
		ID:       parsed.Subject,
		Role:     domain.Role(parsed.Role),
		SchoolID: parsed.SchoolID,
	}
	if principal.ID == "" {
		return domain.Principal{}, fmt.Errorf("%w: credential subject is required", domain.ErrUnauthenticated)
	}
	switch principal.Role {
	case domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin:
	default:
		return domain.Principal{}, fmt.Errorf("%w: credential role %q is not recognized", domain.ErrUnauthenticated, parsed.Role)
	}
	return principal, nil
}

// Sign issues a token for the given principal, expiring after ttl. Used by
// tooling and tests; production credentials come from the identity service.
func (v *Verifier) Sign(p domain.Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     string(p.Role),
		SchoolID: p.SchoolID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// mapJWTError translates jwt library errors into the unauthenticated kind.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: credential is expired", domain.ErrUnauthenticated)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: credential signature is invalid", domain.ErrUnauthenticated)
	default:
		return fmt.Errorf("%w: credential is invalid", domain.ErrUnauthenticated)
	}
}
