package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

type memRepo struct {
	byEmail map[string]*User
	nextID  uint
}

func newMemRepo() *memRepo {
	return &memRepo{byEmail: make(map[string]*User)}
}

func (r *memRepo) Create(ctx context.Context, u *User) error {
	if _, ok := r.byEmail[u.Email]; ok {
		return apperrors.ErrEmailDuplicate
	}
	r.nextID++
	u.ID = r.nextID
	r.byEmail[u.Email] = u
	return nil
}

func (r *memRepo) FindByID(ctx context.Context, id uint) (*User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *memRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *memRepo) UpdateRole(ctx context.Context, id uint, role Role) error {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.Role = role
	return nil
}

func TestService_Register(t *testing.T) {
	svc := NewServiceWithCost(newMemRepo(), bcrypt.MinCost)

	u, err := svc.Register(context.Background(), " Reader@Example.com ", "secret123", "读者")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", u.Email, "邮箱应规范化为小写")
	assert.Equal(t, RoleCustomer, u.Role)
	assert.NotEqual(t, "secret123", u.Password)

	_, err = svc.Register(context.Background(), "reader@example.com", "secret123", "读者")
	assert.ErrorIs(t, err, apperrors.ErrEmailDuplicate)
}

func TestService_Register_Validation(t *testing.T) {
	svc := NewServiceWithCost(newMemRepo(), bcrypt.MinCost)

	cases := []struct {
		name, email, password, nickname string
		code                            int
	}{
		{"邮箱格式错误", "not-an-email", "secret123", "ab", apperrors.ErrCodeInvalidParams},
		{"密码过短", "a@b.com", "s1", "ab", apperrors.ErrCodeWeakPassword},
		{"密码无数字", "a@b.com", "secretsecret", "ab", apperrors.ErrCodeWeakPassword},
		{"昵称过短", "a@b.com", "secret123", "a", apperrors.ErrCodeInvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.email, tc.password, tc.nickname)
			if !apperrors.HasCode(err, tc.code) {
				t.Errorf("期望错误码%d，实际%v", tc.code, err)
			}
		})
	}
}

func TestService_Login(t *testing.T) {
	svc := NewServiceWithCost(newMemRepo(), bcrypt.MinCost)
	_, err := svc.Register(context.Background(), "a@b.com", "secret123", "ab")
	require.NoError(t, err)

	u, err := svc.Login(context.Background(), "A@B.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	_, err = svc.Login(context.Background(), "a@b.com", "wrong1234")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPassword)

	_, err = svc.Login(context.Background(), "nobody@b.com", "secret123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPassword, "账号不存在与密码错误应不可区分")
}
