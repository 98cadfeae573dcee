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
	"github.com/roadbook/planner-api/internal/core/ports"
	"github.com/roadbook/planner-api/internal/core/token"
)

type invitationFixture struct {
	svc   *invitationService
	store *memStore
	mails *recordingQueue
	codec *token.Codec
}

func newInvitationFixture(t *testing.T) invitationFixture {
	t.Helper()
	store := newMemStore()
	mails := &recordingQueue{}
	codec := newTestCodec(t)
	svc := NewInvitationService(store, codec, mails, Links{BaseURL: "https://app.example.com/"}, zerolog.Nop())
	return invitationFixture{svc: svc.(*invitationService), store: store, mails: mails, codec: codec}
}

func (f invitationFixture) invite(t *testing.T, write bool) *domain.Invitation {
	t.Helper()
	inv, err := f.svc.InviteByLink(context.Background(), ports.InviteInput{InviterID: "owner", PlanID: "plan-1", Write: write})
	require.NoError(t, err)
	return inv
}

func TestInvitationService_InviteByEmail(t *testing.T) {
	f := newInvitationFixture(t)

	inv, err := f.svc.InviteByEmail(context.Background(), ports.InviteInput{
		InviterID: "owner",
		PlanID:    "plan-1",
		Email:     " Friend@Example.com",
		Message:   "join us",
		Write:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.InvitationByEmail, inv.Type)
	assert.Equal(t, domain.InvitationPending, inv.Status)
	require.NotNil(t, inv.Email)
	assert.Equal(t, "friend@example.com", *inv.Email)
	assert.Equal(t, inv.CreatedAt.Add(7*24*time.Hour), inv.ExpiresAt)
	assert.True(t, f.codec.Verify(token.InvitationValidation, inv.Token).Valid())

	require.Len(t, f.mails.mails, 1)
	assert.Equal(t, "friend@example.com", f.mails.mails[0].To)
	assert.Contains(t, f.mails.mails[0].Text, "https://app.example.com/invitation/")
	assert.Contains(t, f.mails.mails[0].Text, "join us")
}

func TestInvitationService_InviteByEmail_RequiresEmail(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.svc.InviteByEmail(context.Background(), ports.InviteInput{PlanID: "plan-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.mails.mails)
}

func TestInvitationService_InviteByLink_NoMail(t *testing.T) {
	f := newInvitationFixture(t)
	inv := f.invite(t, false)

	assert.Equal(t, domain.InvitationByLink, inv.Type)
	assert.Nil(t, inv.Email)
	assert.Empty(t, f.mails.mails)
}

func TestInvitationService_Accept_GrantsAndConsumes(t *testing.T) {
	f := newInvitationFixture(t)
	inv := f.invite(t, true)

	rec, err := f.svc.Accept(context.Background(), "user-9", inv.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionRecord{
		PlanID: "plan-1", UserID: "user-9", Write: true, Creator: false,
		CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt,
	}, *rec)

	stored, err := f.store.Permissions().Get(context.Background(), "user-9", "plan-1")
	require.NoError(t, err)
	assert.True(t, stored.Write)

	consumed, err := f.store.Invitations().FindByToken(context.Background(), inv.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, consumed.Status)
	require.NotNil(t, consumed.AcceptedAt)
}

func TestInvitationService_Accept_Replay(t *testing.T) {
	f := newInvitationFixture(t)
	inv := f.invite(t, false)

	_, err := f.svc.Accept(context.Background(), "user-1", inv.Token)
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), "user-2", inv.Token)
	assert.ErrorIs(t, err, domain.ErrInvitationAlreadyAccepted)

	_, err = f.store.Permissions().Get(context.Background(), "user-2", "plan-1")
	assert.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestInvitationService_Accept_Rejections(t *testing.T) {
	f := newInvitationFixture(t)

	unknown, _, err := f.codec.Sign(token.InvitationValidation, "plan-1")
	require.NoError(t, err)
	wrongKind, _, err := f.codec.Sign(token.Access, "plan-1")
	require.NoError(t, err)
	stale, err := token.NewCodec(map[token.Kind]token.Key{
		token.Access:               {Secret: "access", Lifetime: 15 * time.Minute},
		token.Refresh:              {Secret: "refresh", Lifetime: 30 * 24 * time.Hour},
		token.PasswordReset:        {Secret: "reset", Lifetime: time.Hour},
		token.EmailValidation:      {Secret: "email"},
		token.InvitationValidation: {Secret: "invitation", Lifetime: 7 * 24 * time.Hour},
	}, token.WithClock(func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }))
	require.NoError(t, err)
	lapsed, _, err := stale.Sign(token.InvitationValidation, "plan-1")
	require.NoError(t, err)

	expired := f.invite(t, false)
	f.store.invs[expired.Token] = func(i domain.Invitation) domain.Invitation {
		i.ExpiresAt = time.Now().Add(-time.Minute)
		return i
	}(f.store.invs[expired.Token])

	tests := []struct {
		name string
		tok  string
		want error
	}{
		{"garbage", "nope", domain.ErrInvitationMalformed},
		{"other token kind", wrongKind, domain.ErrInvitationMalformed},
		{"not stored", unknown, domain.ErrInvitationNotFound},
		{"expired", expired.Token, domain.ErrInvitationExpired},
		{"token lifetime elapsed", lapsed, domain.ErrInvitationExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Accept(context.Background(), "user-1", tt.tok)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.store.perms)
}

func TestInvitationService_Accept_ExistingMemberRollsBack(t *testing.T) {
	f := newInvitationFixture(t)
	inv := f.invite(t, true)
	require.NoError(t, f.store.Permissions().Create(context.Background(), &domain.PermissionRecord{
		PlanID: "plan-1", UserID: "user-1", Write: false,
	}))

	_, err := f.svc.Accept(context.Background(), "user-1", inv.Token)
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	still, err := f.store.Invitations().FindByToken(context.Background(), inv.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, still.Status)
}

func TestInvitationService_Accept_SecondWriteFailureRollsBackFirst(t *testing.T) {
	f := newInvitationFixture(t)
	inv := f.invite(t, true)
	f.store.failOn["invs.mark_accepted"] = errors.New("connection reset")

	_, err := f.svc.Accept(context.Background(), "user-1", inv.Token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, err = f.store.Permissions().Get(context.Background(), "user-1", "plan-1")
	assert.ErrorIs(t, err, domain.ErrNotAMember, "permission grant must be rolled back")
	assert.Equal(t, 1, f.store.txCount)
}

func TestInvitationService_ListByPlan_ComputesExpiry(t *testing.T) {
	f := newInvitationFixture(t)
	fresh := f.invite(t, false)
	old := f.invite(t, false)
	f.store.invs[old.Token] = func(i domain.Invitation) domain.Invitation {
		i.ExpiresAt = time.Now().Add(-time.Hour)
		return i
	}(f.store.invs[old.Token])

	invs, err := f.svc.ListByPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	require.Len(t, invs, 2)

	status := map[string]domain.InvitationStatus{}
	for _, inv := range invs {
		status[inv.Token] = inv.Status
	}
	assert.Equal(t, domain.InvitationPending, status[fresh.Token])
	assert.Equal(t, domain.InvitationExpired, status[old.Token])

	stored, _ := f.store.Invitations().FindByToken(context.Background(), old.Token)
	assert.Equal(t, domain.InvitationPending, stored.Status, "expiry is never written")
}
