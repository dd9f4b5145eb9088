package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appcart "github.com/xiebiao/ebookstore/internal/application/cart"
	"github.com/xiebiao/ebookstore/internal/domain/user"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/jwt"
)

type memUsers struct {
	byEmail map[string]*user.User
}

func (r *memUsers) Create(ctx context.Context, u *user.User) error {
	if _, ok := r.byEmail[u.Email]; ok {
		return apperrors.ErrEmailDuplicate
	}
	u.ID = uint(len(r.byEmail) + 1)
	r.byEmail[u.Email] = u
	return nil
}

func (r *memUsers) FindByID(ctx context.Context, id uint) (*user.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *memUsers) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *memUsers) UpdateRole(ctx context.Context, id uint, role user.Role) error {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.Role = role
	return nil
}

type memSessions struct {
	saved       map[uint]map[string]interface{}
	blacklisted map[string]time.Duration
	saveErr     error
}

func (s *memSessions) SaveSession(ctx context.Context, userID uint, data map[string]interface{}, ttl time.Duration) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[userID] = data
	return nil
}

func (s *memSessions) DeleteSession(ctx context.Context, userID uint) error {
	delete(s.saved, userID)
	return nil
}

func (s *memSessions) AddToBlacklist(ctx context.Context, token string, ttl time.Duration) error {
	s.blacklisted[token] = ttl
	return nil
}

type stubMerger struct {
	calls  []appcart.MergeRequest
	result *appcart.MergeResult
	err    error
}

func (m *stubMerger) Execute(ctx context.Context, req appcart.MergeRequest) (*appcart.MergeResult, error) {
	m.calls = append(m.calls, req)
	return m.result, m.err
}

type fixture struct {
	sessions *memSessions
	merger   *stubMerger
	jwt      *jwt.Manager
	register *RegisterUseCase
	login    *LoginUseCase
	logout   *LogoutUseCase
}

func newFixture() *fixture {
	f := &fixture{
		sessions: &memSessions{saved: map[uint]map[string]interface{}{}, blacklisted: map[string]time.Duration{}},
		merger:   &stubMerger{result: &appcart.MergeResult{Outcome: appcart.MergeOutcomeMerged}},
		jwt:      jwt.NewManager("test-secret", time.Hour, 24*time.Hour),
	}
	svc := user.NewServiceWithCost(&memUsers{byEmail: map[string]*user.User{}}, bcrypt.MinCost)
	f.register = NewRegisterUseCase(svc)
	f.login = NewLoginUseCase(svc, f.jwt, f.sessions, f.merger, zerolog.Nop())
	f.logout = NewLogoutUseCase(f.sessions, time.Hour)
	return f
}

func (f *fixture) registered(t *testing.T) *UserInfo {
	t.Helper()
	info, err := f.register.Execute(context.Background(), RegisterRequest{
		Email: "reader@example.com", Password: "secret123", Nickname: "读者",
	})
	require.NoError(t, err)
	return info
}

func TestRegister(t *testing.T) {
	f := newFixture()
	info := f.registered(t)

	assert.Equal(t, "reader@example.com", info.Email)
	assert.Equal(t, "customer", info.Role)

	_, err := f.register.Execute(context.Background(), RegisterRequest{
		Email: "reader@example.com", Password: "secret123", Nickname: "重复",
	})
	assert.ErrorIs(t, err, apperrors.ErrEmailDuplicate)
}

func TestLogin_IssuesTokensWithRole(t *testing.T) {
	f := newFixture()
	info := f.registered(t)

	resp, err := f.login.Execute(context.Background(), LoginRequest{Email: "reader@example.com", Password: "secret123", ClientIP: "1.2.3.4"})
	require.NoError(t, err)

	claims, err := f.jwt.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, info.ID, claims.UserID)
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Empty(t, resp.CartMerge, "未携带guest_id时不合并")
	assert.Empty(t, f.merger.calls)
	assert.Equal(t, "1.2.3.4", f.sessions.saved[info.ID]["ip"])
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture()
	f.registered(t)

	_, err := f.login.Execute(context.Background(), LoginRequest{Email: "reader@example.com", Password: "wrong1234", GuestID: "g-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPassword)
	assert.Empty(t, f.merger.calls, "登录失败不应合并购物车")
}

func TestLogin_MergesGuestCart(t *testing.T) {
	f := newFixture()
	info := f.registered(t)

	resp, err := f.login.Execute(context.Background(), LoginRequest{Email: "reader@example.com", Password: "secret123", GuestID: "g-1"})
	require.NoError(t, err)

	assert.Equal(t, appcart.MergeOutcomeMerged, resp.CartMerge)
	require.Len(t, f.merger.calls, 1)
	assert.Equal(t, appcart.MergeRequest{UserID: info.ID, GuestID: "g-1"}, f.merger.calls[0])
}

func TestLogin_MergeFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture()
	f.registered(t)
	f.merger.err = errors.New("redis down")
	f.sessions.saveErr = errors.New("redis down")

	resp, err := f.login.Execute(context.Background(), LoginRequest{Email: "reader@example.com", Password: "secret123", GuestID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, appcart.MergeOutcomeFailed, resp.CartMerge)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogout(t *testing.T) {
	f := newFixture()
	info := f.registered(t)
	resp, err := f.login.Execute(context.Background(), LoginRequest{Email: "reader@example.com", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, f.logout.Execute(context.Background(), info.ID, resp.AccessToken))
	assert.NotContains(t, f.sessions.saved, info.ID)
	assert.Equal(t, time.Hour, f.sessions.blacklisted[resp.AccessToken])
}

func TestGrantAdmin(t *testing.T) {
	repo := &memUsers{byEmail: map[string]*user.User{}}
	require.NoError(t, repo.Create(context.Background(), user.NewUser("ops@example.com", "hash", "运维")))
	uc := NewGrantAdminUseCase(repo)

	info, err := uc.Execute(context.Background(), "  OPS@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "admin", info.Role)
	assert.Equal(t, user.RoleAdmin, repo.byEmail["ops@example.com"].Role)

	_, err = uc.Execute(context.Background(), "ops@example.com")
	assert.NoError(t, err, "重复授予应幂等")

	_, err = uc.Execute(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
