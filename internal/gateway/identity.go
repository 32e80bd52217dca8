package gateway

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by an HS256 session token. The
// subject is the user id.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier issues and verifies HS256 session tokens.
type TokenVerifier struct {
	secret []byte
	issuer string

	// Now overrides the clock used for expiry checks. Nil means time.Now.
	Now func() time.Time
}

// NewTokenVerifier creates a verifier. An empty issuer disables the issuer
// check.
func NewTokenVerifier(secret []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: secret, issuer: issuer}
}

func (v *TokenVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Verify parses token and returns its identity. Every failure is reported
// as UNAUTHENTICATED.
func (v *TokenVerifier) Verify(token string) (Identity, error) {
	const op = "verify session"
	if token == "" {
		return Identity{}, NewError(ErrCodeUnauthenticated, op, errors.New("no session token"))
	}
	if len(v.secret) == 0 {
		return Identity{}, NewError(ErrCodeUnauthenticated, op, errors.New("no signing secret configured"))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := new(SessionClaims)
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, NewError(ErrCodeUnauthenticated, op, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, NewError(ErrCodeUnauthenticated, op, errors.New("token has no subject"))
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Issue signs a token for id valid for ttl from now.
func (v *TokenVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := SessionClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
