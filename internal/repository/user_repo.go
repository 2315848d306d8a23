package repository

import (
	"context"
	"fmt"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository holds users, their tokens, groups and the permission
// catalogue.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context, includeDisabled bool) ([]model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	AnonymiseUsers(ctx context.Context) (int64, error)

	FindToken(ctx context.Context, token string) (*model.UserToken, error)
	SaveToken(ctx context.Context, t *model.UserToken) error

	SyncPermissions(ctx context.Context, perms []model.Permission) error
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	GrantPermission(ctx context.Context, userID int64, permissionID string) error
	SaveGroup(ctx context.Context, g *model.Group) error
	AddUserToGroup(ctx context.Context, userID int64, groupID string) error
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) users(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db).Preload("Permissions").Preload("Groups.Permissions").Preload("Tokens")
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	return conn(ctx, r.db).Omit("Groups.*", "Permissions.*", "Tokens").Create(u).Error
}

func (r *userRepo) FindUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.users(ctx).First(&u, id).Error
	return &u, err
}

func (r *userRepo) ListUsers(ctx context.Context, includeDisabled bool) ([]model.User, error) {
	var out []model.User
	q := r.users(ctx)
	if !includeDisabled {
		q = q.Where("enabled = true")
	}
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}

func (r *userRepo) UpdateUser(ctx context.Context, u *model.User) error {
	return conn(ctx, r.db).Model(u).
		Select("full_name", "short_name", "enabled", "superuser", "password", "last_seen").
		Updates(u).Error
}

// AnonymiseUsers replaces the names of disabled users and drops their
// passwords and tokens.
func (r *userRepo) AnonymiseUsers(ctx context.Context) (int64, error) {
	var users []model.User
	db := conn(ctx, r.db)
	if err := db.Where("enabled = false").Find(&users).Error; err != nil {
		return 0, err
	}
	for _, u := range users {
		name := fmt.Sprintf("Former user %d", u.ID)
		if err := db.Model(&model.User{}).Where("id = ?", u.ID).Updates(map[string]any{
			"full_name":  name,
			"short_name": name,
			"password":   nil,
		}).Error; err != nil {
			return 0, err
		}
		if err := db.Where("authdata_user = ?", u.ID).Delete(&model.UserToken{}).Error; err != nil {
			return 0, err
		}
	}
	return int64(len(users)), nil
}

func (r *userRepo) FindToken(ctx context.Context, token string) (*model.UserToken, error) {
	var t model.UserToken
	err := conn(ctx, r.db).Preload("User.Permissions").Preload("User.Groups.Permissions").
		First(&t, "token = ?", token).Error
	return &t, err
}

func (r *userRepo) SaveToken(ctx context.Context, t *model.UserToken) error {
	return conn(ctx, r.db).Omit("User").Save(t).Error
}

// SyncPermissions inserts missing permissions and refreshes descriptions.
func (r *userRepo) SyncPermissions(ctx context.Context, perms []model.Permission) error {
	if len(perms) == 0 {
		return nil
	}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"description"}),
	}).Create(&perms).Error
}

func (r *userRepo) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var out []model.Permission
	err := conn(ctx, r.db).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *userRepo) GrantPermission(ctx context.Context, userID int64, permissionID string) error {
	return conn(ctx, r.db).Model(&model.User{ID: userID}).
		Association("Permissions").Append(&model.Permission{ID: permissionID})
}

func (r *userRepo) SaveGroup(ctx context.Context, g *model.Group) error {
	return conn(ctx, r.db).Omit("Permissions.*").Save(g).Error
}

func (r *userRepo) AddUserToGroup(ctx context.Context, userID int64, groupID string) error {
	var g model.Group
	if err := conn(ctx, r.db).First(&g, "id = ?", groupID).Error; err != nil {
		return err
	}
	return conn(ctx, r.db).Model(&model.User{ID: userID}).
		Association("Groups").Append(&model.Group{ID: groupID})
}
