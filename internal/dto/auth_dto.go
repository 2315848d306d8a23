package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// TokenLoginRequest is sent when a user presents a physical token. The
// password is only needed when the site asks for it.
type TokenLoginRequest struct {
	Token    string  `json:"token"    validate:"required,max=100"`
	Password *string `json:"password" validate:"omitempty,min=1"`
}

// PasswordLoginRequest logs a user in by password. UserID may be left
// out when the site allows password-only login.
type PasswordLoginRequest struct {
	UserID   *int64 `json:"user_id"  validate:"omitempty,min=1"`
	Password string `json:"password" validate:"required,min=1"`
}

type CreateUserRequest struct {
	FullName    string   `json:"fullname"    validate:"required,min=1,max=100"`
	ShortName   string   `json:"shortname"   validate:"required,min=1,max=30"`
	Superuser   bool     `json:"superuser"`
	Password    *string  `json:"password"    validate:"omitempty,min=4"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
	Groups      []string `json:"groups"      validate:"omitempty,dive,required"`
}

type UpdateUserRequest struct {
	FullName  *string `json:"fullname"  validate:"omitempty,min=1,max=100"`
	ShortName *string `json:"shortname" validate:"omitempty,min=1,max=30"`
	Enabled   *bool   `json:"enabled"`
	Superuser *bool   `json:"superuser"`
	Password  *string `json:"password"  validate:"omitempty,min=4"`
}

type AddTokenRequest struct {
	Token       string `json:"token"       validate:"required,max=100"`
	Description string `json:"description" validate:"max=100"`
}

type GrantRequest struct {
	Permission string `json:"permission" validate:"required"`
}

type GroupRequest struct {
	ID          string   `json:"id"          validate:"required,max=50"`
	Description string   `json:"description" validate:"required"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

type AddToGroupRequest struct {
	Group string `json:"group" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UserResponse struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"fullname"`
	ShortName   string     `json:"shortname"`
	Enabled     bool       `json:"enabled"`
	Superuser   bool       `json:"superuser"`
	HasPassword bool       `json:"has_password"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	Permissions []string   `json:"permissions"`
	Groups      []string   `json:"groups"`
	Tokens      []string   `json:"tokens"`
}

type TokenResponse struct {
	Token               string     `json:"token"`
	Description         string     `json:"description"`
	UserID              *int64     `json:"user_id,omitempty"`
	UserName            string     `json:"user_name,omitempty"`
	LastSeen            *time.Time `json:"last_seen,omitempty"`
	LastSuccessfulLogin *time.Time `json:"last_successful_login,omitempty"`
}

type PermissionResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // seconds
	User        UserResponse `json:"user"`
}
