package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/ebookstore/internal/domain/user"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// userRepository 用户仓储（MySQL）
// 邮箱唯一性由UNIQUE索引保证，重复插入转换为ErrEmailDuplicate
type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	role := u.Role
	if !role.Valid() {
		role = user.RoleCustomer
	}
	model := &UserModel{
		Email:    u.Email,
		Password: u.Password,
		Nickname: u.Nickname,
		Role:     string(role),
	}

	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return apperrors.ErrEmailDuplicate
		}
		return apperrors.Wrap(err, "创建用户失败")
	}

	u.ID = model.ID
	u.Role = role
	u.CreatedAt = model.CreatedAt
	u.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*user.User, error) {
	var model UserModel
	if err := getDB(ctx, r.db).First(&model, id).Error; err != nil {
		return nil, userLookupError(err)
	}
	return toUserEntity(&model), nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var model UserModel
	if err := getDB(ctx, r.db).Where("email = ?", email).First(&model).Error; err != nil {
		return nil, userLookupError(err)
	}
	return toUserEntity(&model), nil
}

// UpdateRole 管理员引导：把已注册用户提升为admin
func (r *userRepository) UpdateRole(ctx context.Context, id uint, role user.Role) error {
	if !role.Valid() {
		return apperrors.ErrInvalidParams.WithMessage("未知的角色")
	}

	result := getDB(ctx, r.db).Model(&UserModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"role": string(role), "updated_at": time.Now()})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新用户角色失败")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func userLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	return apperrors.Wrap(err, "查询用户失败")
}

func toUserEntity(model *UserModel) *user.User {
	return &user.User{
		ID:        model.ID,
		Email:     model.Email,
		Password:  model.Password,
		Nickname:  model.Nickname,
		Role:      user.Role(model.Role),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
