package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/models"
)

const (
	secret   = "test-secret"
	issuer   = "rh-portal"
	audience = "rh-portal-web"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"user_id":   42,
		"role":      "colaborador",
		"matricula": "M0042",
		"name":      "Ana Souza",
		"iss":       issuer,
		"aud":       audience,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"iat":       time.Now().Unix(),
	}
}

func TestVerifier_AcceptsIssuedToken(t *testing.T) {
	iss := auth.NewIssuer(secret, issuer, audience, time.Hour)
	v := auth.NewVerifier(secret, issuer, audience)

	token, exp, err := iss.Issue(auth.Principal{ID: 7, Role: models.RoleAdmin, Matricula: "A0007", Name: "RH Maria"})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, auth.Principal{ID: 7, Role: models.RoleAdmin, Matricula: "A0007", Name: "RH Maria"}, p)
	assert.True(t, p.IsAdmin())
}

func TestVerifier_Rejections(t *testing.T) {
	v := auth.NewVerifier(secret, issuer, audience)

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{"empty", func() string { return "  " }, auth.ErrMissingToken},
		{"garbage", func() string { return "not-a-jwt" }, auth.ErrInvalidToken},
		{"wrong secret", func() string {
			return sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims())
		}, auth.ErrInvalidToken},
		{"wrong algorithm", func() string {
			return sign(t, jwt.SigningMethodHS512, []byte(secret), validClaims())
		}, auth.ErrInvalidToken},
		{"wrong issuer", func() string {
			c := validClaims()
			c["iss"] = "elsewhere"
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}, auth.ErrInvalidToken},
		{"wrong audience", func() string {
			c := validClaims()
			c["aud"] = "mobile"
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}, auth.ErrInvalidToken},
		{"expired", func() string {
			c := validClaims()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}, auth.ErrInvalidToken},
		{"no expiry", func() string {
			c := validClaims()
			delete(c, "exp")
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}, auth.ErrInvalidToken},
		{"missing user", func() string {
			c := validClaims()
			delete(c, "user_id")
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}, auth.ErrInvalidToken},
		{"unknown role", func() string {
			c := validClaims()
			c["role"] = "visitante"
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}, auth.ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifier_UserIDAsString(t *testing.T) {
	v := auth.NewVerifier(secret, issuer, audience)
	c := validClaims()
	c["user_id"] = "42"

	p, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte(secret), c))
	require.NoError(t, err)
	assert.EqualValues(t, 42, p.ID)
	assert.Equal(t, models.RoleColab, p.Role)
}

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Role
		ok   bool
	}{
		{"ADMIN", models.RoleAdmin, true},
		{" administrador ", models.RoleAdmin, true},
		{"Super-Admin", models.RoleAdmin, true},
		{"rh", models.RoleAdmin, true},
		{"COLAB", models.RoleColab, true},
		{"Colaborador", models.RoleColab, true},
		{"funcionário", models.RoleColab, true},
		{"employee", models.RoleColab, true},
		{"", "", false},
		{"guest", "", false},
		{"root", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := auth.NormalizeRole(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
