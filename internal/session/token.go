package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskdash/internal/domain"
)

const issuer = "taskdash"

var ErrInvalidToken = errors.New("invalid session token")

type Claims struct {
	Role  domain.Role `json:"role"`
	Email string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	return id, nil
}

// Codec signs and verifies HS256 session tokens.
type Codec struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (c Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Issue mints a token for u with a fresh jti.
func (c Codec) Issue(u domain.User) (string, Claims, error) {
	if len(c.Secret) == 0 {
		return "", Claims{}, errors.New("session secret not configured")
	}
	now := c.now()
	claims := Claims{
		Role:  u.Role,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.Secret)
	if err != nil {
		return "", Claims{}, err
	}
	return token, claims, nil
}

// Parse verifies signature, issuer and expiry.
func (c Codec) Parse(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return c.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// NeedsRenewal reports whether less than half of the session lifetime
// remains.
func (c Codec) NeedsRenewal(claims Claims) bool {
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Sub(c.now()) < c.TTL/2
}
