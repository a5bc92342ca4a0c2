package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tokens := NewTokenManager("test-secret", time.Hour)
	return NewService(NewMemoryStore(), tokens, nil, ServiceConfig{
		PasswordMinLength: 8,
		HashIterations:    MinHashIterations,
	})
}

func TestSignUp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, "Anne@Example.com", "pa55word", map[string]any{"plan": "free"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "anne@example.com", resp.User.Email)
	assert.Equal(t, "free", resp.User.Metadata["plan"])
}

func TestSignUpRejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "anne@example.com", "pa55word", nil)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"duplicate email", "anne@example.com", "pa55word", ErrEmailTaken},
		{"duplicate email different case", "ANNE@example.com", "pa55word", ErrEmailTaken},
		{"invalid email", "not-an-email", "pa55word", ErrInvalidEmail},
		{"weak password", "ben@example.com", "short1", ErrWeakPassword},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tc.email, tc.password, nil)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

// Wrong password and unknown email must be indistinguishable to the caller.
func TestSignInErrorsDoNotRevealAccounts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "anne@example.com", "pa55word", nil)
	require.NoError(t, err)

	_, wrongPassword := svc.SignIn(ctx, "anne@example.com", "wr0ng pass")
	_, unknownEmail := svc.SignIn(ctx, "nobody@example.com", "wr0ng pass")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestSignInMintsFreshSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	signUp, err := svc.SignUp(ctx, "anne@example.com", "pa55word", nil)
	require.NoError(t, err)
	signIn, err := svc.SignIn(ctx, "anne@example.com", "pa55word")
	require.NoError(t, err)

	assert.NotEqual(t, signUp.RefreshToken, signIn.RefreshToken)

	user, err := svc.UserFromAccessToken(ctx, signIn.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "anne@example.com", user.Email)
}

func TestRefreshRotatesSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.SignUp(ctx, "anne@example.com", "pa55word", nil)
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	// the superseded session is gone: old refresh and access tokens are dead
	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = svc.UserFromAccessToken(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.UserFromAccessToken(ctx, second.AccessToken)
	assert.NoError(t, err)
}

// A refresh token presented twice concurrently yields exactly one winner.
func TestRefreshConcurrentSingleUse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, "anne@example.com", "pa55word", nil)
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, resp.RefreshToken)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestSignOutIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, "anne@example.com", "pa55word", nil)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, resp.AccessToken))
	require.NoError(t, svc.SignOut(ctx, resp.AccessToken))

	_, err = svc.UserFromAccessToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Refresh(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestUpdateUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, "anne@example.com", "pa55word", map[string]any{"plan": "free", "theme": "dark"})
	require.NoError(t, err)

	newPassword := "n3w password"
	updated, err := svc.UpdateUser(ctx, resp.AccessToken, UserUpdate{
		Password: &newPassword,
		Metadata: map[string]any{"plan": "pro"},
	})
	require.NoError(t, err)

	// metadata merges rather than replaces
	assert.Equal(t, "pro", updated.Metadata["plan"])
	assert.Equal(t, "dark", updated.Metadata["theme"])

	_, err = svc.SignIn(ctx, "anne@example.com", "pa55word")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "anne@example.com", newPassword)
	assert.NoError(t, err)
}

func TestUpdateUserRequiresValidToken(t *testing.T) {
	svc := newTestService(t)
	email := "new@example.com"
	_, err := svc.UpdateUser(context.Background(), "garbage-token", UserUpdate{Email: &email})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
