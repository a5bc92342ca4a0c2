package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContext(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	resolver := NewResolver(tm, nil)

	anonKey, err := tm.MintAPIKey(RoleAnon, time.Hour)
	require.NoError(t, err)
	serviceKey, err := tm.MintAPIKey(RoleServiceRole, time.Hour)
	require.NoError(t, err)
	access, _, err := tm.MintAccess(&User{ID: "user-1", Email: "anne@example.com"})
	require.NoError(t, err)

	foreign, _, err := NewTokenManager("other-secret", time.Hour).MintAccess(&User{ID: "user-2"})
	require.NoError(t, err)

	testCases := []struct {
		name       string
		headers    http.Header
		wantRole   Role
		wantUserID string
	}{
		{
			name:     "no credentials degrade to anon",
			headers:  http.Header{},
			wantRole: RoleAnon,
		},
		{
			name:     "anon api key",
			headers:  http.Header{"Apikey": {anonKey}},
			wantRole: RoleAnon,
		},
		{
			name:     "service role api key",
			headers:  http.Header{"Apikey": {serviceKey}},
			wantRole: RoleServiceRole,
		},
		{
			name:       "bearer token yields authenticated user",
			headers:    http.Header{"Authorization": {"Bearer " + access}},
			wantRole:   RoleAuthenticated,
			wantUserID: "user-1",
		},
		{
			name:       "bearer beats api key",
			headers:    http.Header{"Apikey": {serviceKey}, "Authorization": {"Bearer " + access}},
			wantRole:   RoleAuthenticated,
			wantUserID: "user-1",
		},
		{
			name:     "foreign-signed bearer degrades to anon",
			headers:  http.Header{"Authorization": {"Bearer " + foreign}},
			wantRole: RoleAnon,
		},
		{
			name:     "garbage bearer degrades to anon",
			headers:  http.Header{"Authorization": {"Bearer not.a.jwt"}},
			wantRole: RoleAnon,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sc := resolver.ResolveContext(tc.headers)
			assert.Equal(t, tc.wantRole, sc.Role)
			assert.Equal(t, tc.wantUserID, sc.UserID)
		})
	}
}

func TestServiceRoleBypassesRLS(t *testing.T) {
	assert.True(t, SessionContext{Role: RoleServiceRole}.BypassesRLS())
	assert.False(t, SessionContext{Role: RoleAuthenticated}.BypassesRLS())
	assert.False(t, SessionContext{Role: RoleAnon}.BypassesRLS())
}
