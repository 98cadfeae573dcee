package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/token"
)

func newAuthFixture(t *testing.T) (*AuthService, *memStore, *stubSessions, *token.Codec) {
	t.Helper()
	store := newMemStore()
	sessions := newStubSessions()
	codec := newTestCodec(t)
	return NewAuthService(store.Users(), sessions, codec, cheapHasher(), zerolog.Nop()), store, sessions, codec
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, store, sessions, codec := newAuthFixture(t)
	user := seedUser(t, store, "alice@example.com", "s3cret-pass", true)

	before := time.Now().Truncate(time.Second)
	res, err := svc.Login(context.Background(), "  Alice@Example.com ", "s3cret-pass")
	require.NoError(t, err)

	assert.Equal(t, user.ID, res.User.ID)
	require.NotNil(t, res.User.LastLoginAt)

	access := codec.Verify(token.Access, res.Access.Value)
	require.True(t, access.Valid())
	assert.Equal(t, user.ID, access.SubjectID)
	assert.WithinDuration(t, before.Add(15*time.Minute), res.Access.ExpiresAt, 2*time.Second)

	refresh := codec.Verify(token.Refresh, res.Refresh.Value)
	require.True(t, refresh.Valid())
	assert.WithinDuration(t, before.Add(30*24*time.Hour), res.Refresh.ExpiresAt, 2*time.Second)

	sess, ok := sessions.sessions[res.Refresh.Value]
	require.True(t, ok, "session must be keyed by the refresh token")
	assert.Equal(t, user.ID, sess.UserID)
}

func TestAuthService_Login_Failures(t *testing.T) {
	svc, store, _, _ := newAuthFixture(t)
	seedUser(t, store, "bob@example.com", "right-pass", true)
	seedUser(t, store, "carol@example.com", "right-pass", false)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"empty email", "", "x", domain.ErrInvalidCredentials},
		{"empty password", "bob@example.com", "", domain.ErrInvalidCredentials},
		{"unknown email", "ghost@example.com", "right-pass", domain.ErrInvalidCredentials},
		{"wrong password", "bob@example.com", "wrong-pass", domain.ErrInvalidCredentials},
		{"email not validated", "carol@example.com", "right-pass", domain.ErrEmailNotValidated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_Login_SessionStoreDown(t *testing.T) {
	svc, store, sessions, _ := newAuthFixture(t)
	seedUser(t, store, "dave@example.com", "pass-word", true)
	sessions.createErr = errors.New("redis down")

	_, err := svc.Login(context.Background(), "dave@example.com", "pass-word")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_Logout(t *testing.T) {
	svc, store, sessions, _ := newAuthFixture(t)
	seedUser(t, store, "erin@example.com", "pass-word", true)

	res, err := svc.Login(context.Background(), "erin@example.com", "pass-word")
	require.NoError(t, err)
	require.Len(t, sessions.sessions, 1)

	require.NoError(t, svc.Logout(context.Background(), res.Refresh.Value))
	assert.Empty(t, sessions.sessions)

	require.NoError(t, svc.Logout(context.Background(), ""))
}
