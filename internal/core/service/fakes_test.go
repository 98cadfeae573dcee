package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
	"github.com/roadbook/planner-api/internal/core/token"
)

// memStore is an in-memory ports.Store. WithTx snapshots every table and
// restores the snapshot when fn fails, which is enough to observe rollback.
type memStore struct {
	mu      sync.Mutex
	nextID  int
	users   map[string]domain.User
	perms   map[string]domain.PermissionRecord
	invs    map[string]domain.Invitation
	resets  map[string]domain.PasswordResetRequest
	failOn  map[string]error
	txCount int
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]domain.User{},
		perms:  map[string]domain.PermissionRecord{},
		invs:   map[string]domain.Invitation{},
		resets: map[string]domain.PasswordResetRequest{},
		failOn: map[string]error{},
	}
}

func permKey(userID, planID string) string { return userID + "/" + planID }

func (s *memStore) fail(op string) error { return s.failOn[op] }

func (s *memStore) Users() ports.UserRepository { return memUsers{s} }
func (s *memStore) Permissions() ports.PermissionRepository { return memPerms{s} }
func (s *memStore) Invitations() ports.InvitationRepository { return memInvs{s} }
func (s *memStore) PasswordResets() ports.PasswordResetRepository { return memResets{s} }

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ports.Store) error) error {
	s.mu.Lock()
	s.txCount++
	users, perms, invs, resets := cloneMap(s.users), cloneMap(s.perms), cloneMap(s.invs), cloneMap(s.resets)
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.users, s.perms, s.invs, s.resets = users, perms, invs, resets
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.create"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.s.nextID++
	created := *u
	created.ID = fmt.Sprintf("user-%d", r.s.nextID)
	r.s.users[created.ID] = created
	return &created, nil
}

func (r memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.find"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) update(id string, fn func(*domain.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&u)
	r.s.users[id] = u
	return nil
}

func (r memUsers) MarkEmailValidated(_ context.Context, id string) error {
	return r.update(id, func(u *domain.User) { u.EmailValidated = true })
}

func (r memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	if err := r.s.fail("users.update_password"); err != nil {
		return err
	}
	return r.update(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (r memUsers) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) { u.LastLoginAt = &at })
}

type memPerms struct{ s *memStore }

func (r memPerms) Get(_ context.Context, userID, planID string) (*domain.PermissionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.perms[permKey(userID, planID)]
	if !ok {
		return nil, domain.ErrNotAMember
	}
	return &p, nil
}

func (r memPerms) Create(_ context.Context, rec *domain.PermissionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("perms.create"); err != nil {
		return err
	}
	key := permKey(rec.UserID, rec.PlanID)
	if _, ok := r.s.perms[key]; ok {
		return domain.ErrAlreadyMember
	}
	r.s.perms[key] = *rec
	return nil
}

func (r memPerms) list(match func(domain.PermissionRecord) bool) []domain.PermissionRecord {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PermissionRecord
	for _, p := range r.s.perms {
		if match(p) {
			out = append(out, p)
		}
	}
	return out
}

func (r memPerms) ListByPlan(_ context.Context, planID string) ([]domain.PermissionRecord, error) {
	return r.list(func(p domain.PermissionRecord) bool { return p.PlanID == planID }), nil
}

func (r memPerms) ListByUser(_ context.Context, userID string) ([]domain.PermissionRecord, error) {
	return r.list(func(p domain.PermissionRecord) bool { return p.UserID == userID }), nil
}

type memInvs struct{ s *memStore }

func (r memInvs) Create(_ context.Context, inv *domain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invs[inv.Token] = *inv
	return nil
}

func (r memInvs) FindByToken(_ context.Context, tok string) (*domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invs[tok]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	return &inv, nil
}

func (r memInvs) ListByPlan(_ context.Context, planID string) ([]domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range r.s.invs {
		if inv.PlanID == planID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r memInvs) MarkAccepted(_ context.Context, tok string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("invs.mark_accepted"); err != nil {
		return err
	}
	inv, ok := r.s.invs[tok]
	if !ok || inv.Status != domain.InvitationPending {
		return domain.ErrInvitationAlreadyAccepted
	}
	inv.Status = domain.InvitationAccepted
	inv.AcceptedAt = &at
	r.s.invs[tok] = inv
	return nil
}

type memResets struct{ s *memStore }

func (r memResets) Create(_ context.Context, req *domain.PasswordResetRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.resets[req.Token] = *req
	return nil
}

func (r memResets) FindByToken(_ context.Context, tok string) (*domain.PasswordResetRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.resets[tok]
	if !ok {
		return nil, domain.ErrResetRequestNotFound
	}
	return &req, nil
}

func (r memResets) MarkUsed(_ context.Context, tok string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.resets[tok]
	if !ok || req.Used {
		return domain.ErrResetRequestUsed
	}
	req.Used = true
	r.s.resets[tok] = req
	return nil
}

type stubSessions struct {
	sessions  map[string]domain.Session
	createErr error
	revoked   []string
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: map[string]domain.Session{}}
}

func (s *stubSessions) Create(_ context.Context, userID, tok string) (*domain.Session, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	sess := domain.Session{ID: "sess-" + userID, UserID: userID, Token: tok, CreatedAt: time.Now()}
	s.sessions[tok] = sess
	return &sess, nil
}

func (s *stubSessions) Get(_ context.Context, tok string) (*domain.Session, error) {
	sess, ok := s.sessions[tok]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *stubSessions) Delete(_ context.Context, tok string) error {
	delete(s.sessions, tok)
	return nil
}

func (s *stubSessions) DeleteByUser(_ context.Context, userID string) error {
	for tok, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, tok)
		}
	}
	s.revoked = append(s.revoked, userID)
	return nil
}

type recordingQueue struct {
	mails []domain.Mail
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, m domain.Mail) error {
	if q.err != nil {
		return q.err
	}
	q.mails = append(q.mails, m)
	return nil
}

func cheapHasher() BcryptHasher {
	return BcryptHasher{Cost: bcrypt.MinCost}
}

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(map[token.Kind]token.Key{
		token.Access:               {Secret: "access", Lifetime: 15 * time.Minute},
		token.Refresh:              {Secret: "refresh", Lifetime: 30 * 24 * time.Hour},
		token.PasswordReset:        {Secret: "reset", Lifetime: time.Hour},
		token.EmailValidation:      {Secret: "email"},
		token.InvitationValidation: {Secret: "invitation", Lifetime: 7 * 24 * time.Hour},
	})
	require.NoError(t, err)
	return c
}

// seedUser inserts a user with the given password and returns it.
func seedUser(t *testing.T, store *memStore, email, password string, validated bool) *domain.User {
	t.Helper()
	hash, err := cheapHasher().Hash(password)
	require.NoError(t, err)
	u, err := store.Users().Create(context.Background(), &domain.User{
		Email:          email,
		Username:       email,
		PasswordHash:   hash,
		EmailValidated: validated,
	})
	require.NoError(t, err)
	return u
}
