package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrptw/internal/config"
)

func TestDevTokens(t *testing.T) {
	v := NewVerifier(config.Auth{Mode: "dev"})
	p, err := v.Verify("acme:Solver")
	require.NoError(t, err)
	assert.Equal(t, Principal{Tenant: "acme", Role: RoleSolver}, p)
	assert.True(t, p.CanSolve())

	for _, bad := range []string{"", "acme", ":admin", "acme:"} {
		_, err := v.Verify(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestHMACTokens(t *testing.T) {
	secret := []byte("s3cret")
	v := NewVerifier(config.Auth{Mode: "hmac", HMACSecret: string(secret)})
	v.now = func() time.Time { return time.Unix(1000, 0) }

	tok, err := SignHS256(secret, map[string]any{"tenant": "acme", "role": "admin", "exp": 2000})
	require.NoError(t, err)
	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "acme", p.Tenant)
	assert.Equal(t, RoleAdmin, p.Role)

	viewer, err := SignHS256(secret, map[string]any{"tenant": "acme"})
	require.NoError(t, err)
	p, err = v.Verify(viewer)
	require.NoError(t, err)
	assert.False(t, p.CanSolve())

	tests := map[string]func() string{
		"wrong secret": func() string {
			s, _ := SignHS256([]byte("other"), map[string]any{"tenant": "acme"})
			return s
		},
		"expired": func() string {
			s, _ := SignHS256(secret, map[string]any{"tenant": "acme", "exp": 500})
			return s
		},
		"no tenant": func() string {
			s, _ := SignHS256(secret, map[string]any{"role": "admin"})
			return s
		},
		"not a jwt": func() string { return "acme:admin" },
	}
	for name, mk := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(mk())
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestUnknownMode(t *testing.T) {
	_, err := NewVerifier(config.Auth{Mode: "jwks"}).Verify("x")
	assert.Error(t, err)
}
