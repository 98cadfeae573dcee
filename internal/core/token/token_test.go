package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys() map[Kind]Key {
	return map[Kind]Key{
		Access:               {Secret: "access-secret", Lifetime: 15 * time.Minute},
		Refresh:              {Secret: "refresh-secret", Lifetime: 30 * 24 * time.Hour},
		PasswordReset:        {Secret: "reset-secret", Lifetime: time.Hour},
		EmailValidation:      {Secret: "email-secret"},
		InvitationValidation: {Secret: "invitation-secret", Lifetime: 7 * 24 * time.Hour},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func tamperSignature(raw string) string {
	b := []byte(raw)
	i := strings.LastIndex(raw, ".") + 3
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func newTestCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec(testKeys(), opts...)
	require.NoError(t, err)
	return c
}

func TestCodec_SignVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Now().Truncate(time.Second)
	c := newTestCodec(t, WithClock(fixedClock(now)))

	for _, kind := range []Kind{Access, Refresh, PasswordReset, EmailValidation, InvitationValidation} {
		raw, exp, err := c.Sign(kind, "user-1")
		require.NoError(t, err, kind.String())

		res := c.Verify(kind, raw)
		require.True(t, res.Valid(), "%s: %s", kind, res.Failure)
		assert.Equal(t, "user-1", res.SubjectID)
		assert.True(t, res.ExpiresAt.Equal(exp), kind.String())
	}
}

func TestCodec_Sign_ExpiryFollowsLifetime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, WithClock(fixedClock(now)))

	_, accessExp, err := c.Sign(Access, "u")
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), accessExp.UTC())

	_, refreshExp, err := c.Sign(Refresh, "u")
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), refreshExp.UTC())

	_, emailExp, err := c.Sign(EmailValidation, "u")
	require.NoError(t, err)
	assert.True(t, emailExp.IsZero(), "email validation tokens carry no expiry")
}

func TestCodec_Verify_CrossKindRejected(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	access, _, err := c.Sign(Access, "user-1")
	require.NoError(t, err)

	for _, kind := range []Kind{Refresh, PasswordReset, EmailValidation, InvitationValidation} {
		res := c.Verify(kind, access)
		assert.Equal(t, InvalidSignature, res.Failure, kind.String())
		assert.Empty(t, res.SubjectID)
	}
}

func TestCodec_Verify_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	past := newTestCodec(t, WithClock(fixedClock(now.Add(-2*time.Hour))))
	raw, _, err := past.Sign(Access, "user-1")
	require.NoError(t, err)

	res := newTestCodec(t, WithClock(fixedClock(now))).Verify(Access, raw)
	assert.Equal(t, Expired, res.Failure)
	assert.False(t, res.Valid())
}

func TestCodec_Verify_NotYetValid(t *testing.T) {
	t.Parallel()

	now := time.Now()
	future := newTestCodec(t, WithClock(fixedClock(now.Add(time.Hour))))
	raw, _, err := future.Sign(Access, "user-1")
	require.NoError(t, err)

	res := newTestCodec(t, WithClock(fixedClock(now))).Verify(Access, raw)
	assert.Equal(t, NotYetValid, res.Failure)
}

func TestCodec_Verify_InvalidInputs(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	valid, _, err := c.Sign(Access, "user-1")
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"id":  "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"tampered signature", tamperSignature(valid)},
		{"tampered payload", strings.Replace(valid, ".", ".e30", 1)},
		{"foreign algorithm", hs512},
		{"missing subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Verify(Access, tt.raw)
			assert.Equal(t, InvalidSignature, res.Failure)
		})
	}
}

func TestCodec_Sign_TokensAreUnique(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, WithClock(fixedClock(time.Now())))
	a, _, err := c.Sign(Access, "user-1")
	require.NoError(t, err)
	b, _, err := c.Sign(Access, "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNewCodec_Validation(t *testing.T) {
	t.Parallel()

	missing := testKeys()
	delete(missing, Refresh)
	_, err := NewCodec(missing)
	require.ErrorIs(t, err, errMissingKey)

	empty := testKeys()
	empty[PasswordReset] = Key{Lifetime: time.Hour}
	_, err = NewCodec(empty)
	require.ErrorIs(t, err, errMissingKey)

	shared := testKeys()
	shared[Refresh] = Key{Secret: "access-secret", Lifetime: time.Hour}
	_, err = NewCodec(shared)
	require.ErrorIs(t, err, errSharedSecret)
}
