// Package auth validates the signed tokens that authorize both the REST API
// and the websocket handshake. One Verifier instance serves both so a token
// accepted by one surface is accepted by the other.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rh-portal-be/internal/models"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Principal is the identity resolved from a valid token.
type Principal struct {
	ID        uint
	Role      models.Role
	Matricula string
	Name      string
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

type Claims struct {
	UserID    UserID `json:"user_id"`
	Role      string `json:"role"`
	Matricula string `json:"matricula,omitempty"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

func NewVerifier(secret, issuer, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Verify checks signature, algorithm, issuer, audience and expiry, then
// resolves the role. A role outside the alias table fails authentication.
func (v *Verifier) Verify(tokenStr string) (Principal, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Principal{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == 0 {
		return Principal{}, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}

	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return Principal{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}

	return Principal{
		ID:        uint(claims.UserID),
		Role:      role,
		Matricula: claims.Matricula,
		Name:      claims.Name,
	}, nil
}

// Issuer signs tokens the Verifier accepts.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(secret, issuer, audience string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (i *Issuer) Issue(p Principal) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID:    UserID(p.ID),
		Role:      p.Role.String(),
		Matricula: p.Matricula,
		Name:      p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   strconv.FormatUint(uint64(p.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}
