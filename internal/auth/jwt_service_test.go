package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret")
	want := Identity{AccountID: uuid.New(), Role: RoleHolder, HolderRef: "R-1001"}

	token, err := svc.Issue(want, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)

	got, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJWTService_ValidateToken(t *testing.T) {
	issuer := NewJWTService("test-secret")
	id := Identity{AccountID: uuid.New(), Role: RoleCashier}

	valid, err := issuer.Issue(id, time.Minute)
	require.NoError(t, err)
	expired, err := issuer.Issue(id, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		svc     *JWTService
		token   string
		wantErr bool
	}{
		{name: "valid token", svc: issuer, token: valid},
		{name: "wrong secret", svc: NewJWTService("other-secret"), token: valid, wantErr: true},
		{name: "garbage", svc: issuer, token: "not-a-token", wantErr: true},
		// a non-positive ttl falls back to the default expiry
		{name: "default expiry", svc: issuer, token: expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClaims_Identity(t *testing.T) {
	tests := []struct {
		name    string
		claims  Claims
		wantErr bool
	}{
		{name: "unknown role", claims: Claims{Role: "owner"}, wantErr: true},
		{name: "bad subject", claims: Claims{Role: RoleAdmin}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.claims.Identity()
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestIdentity_HasRole(t *testing.T) {
	id := Identity{Role: RoleManager}
	assert.True(t, id.HasRole(RoleAdmin, RoleManager))
	assert.False(t, id.HasRole(RoleHolder))
	assert.True(t, id.IsStaff())
	assert.False(t, Identity{Role: RoleHolder}.IsStaff())
}
