package model

import (
	"time"
)

// User of the till. Permissions are granted directly and through groups;
// a superuser holds every permission.
type User struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	FullName     string     `gorm:"not null" json:"fullname"`
	ShortName    string     `gorm:"not null" json:"shortname"`
	Enabled      bool       `gorm:"not null;default:true" json:"enabled"`
	Superuser    bool       `gorm:"not null;default:false" json:"superuser"`
	PasswordHash *string    `gorm:"column:password" json:"-"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`

	Groups      []Group      `gorm:"many2many:group_membership;" json:"groups,omitempty"`
	Permissions []Permission `gorm:"many2many:user_permissions;" json:"permissions,omitempty"`
	Tokens      []UserToken  `gorm:"foreignKey:UserID" json:"tokens,omitempty"`
}

func (User) TableName() string { return "users" }

// PermissionSet returns the ids of every permission the user holds,
// directly or through a group.
func (u User) PermissionSet() map[string]bool {
	out := make(map[string]bool)
	for _, p := range u.Permissions {
		out[p.ID] = true
	}
	for _, g := range u.Groups {
		for _, p := range g.Permissions {
			out[p.ID] = true
		}
	}
	return out
}

// Group is a named bundle of permissions.
type Group struct {
	ID          string       `gorm:"primaryKey" json:"id"`
	Description string       `gorm:"not null" json:"description"`
	Permissions []Permission `gorm:"many2many:group_grants;" json:"permissions,omitempty"`
}

func (Group) TableName() string { return "groups" }

// Permission is one entry of the permission catalogue.
type Permission struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Description string `gorm:"not null" json:"description"`
}

func (Permission) TableName() string { return "permissions" }

// UserToken is a physical token (card, fob) that identifies a user on any
// terminal.
type UserToken struct {
	Token               string     `gorm:"primaryKey" json:"token"`
	UserID              *int64     `gorm:"column:authdata_user;index" json:"user_id,omitempty"`
	Description         string     `gorm:"not null;default:''" json:"description"`
	LastSeen            *time.Time `gorm:"column:last_seen" json:"last_seen,omitempty"`
	LastSuccessfulLogin *time.Time `gorm:"column:last_successful_login" json:"last_successful_login,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (UserToken) TableName() string { return "usertokens" }
