package service

import (
	"context"
	"sort"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/config"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

// maxPasswordOnlyUsers bounds the bcrypt comparisons one password-only
// login may make.
const maxPasswordOnlyUsers = 16

// AuthService turns a token or password into a signed access token.
type AuthService interface {
	TokenLogin(ctx context.Context, req dto.TokenLoginRequest) (*dto.LoginResponse, error)
	PasswordLogin(ctx context.Context, req dto.PasswordLoginRequest) (*dto.LoginResponse, error)
}

type authService struct {
	db     *gorm.DB
	users  repository.UserRepository
	site   SiteReader
	secret []byte
	expiry time.Duration
	now    Clock
}

func NewAuthService(db *gorm.DB, repos Repositories, site SiteReader, secret string, expiry time.Duration) AuthService {
	now := repos.Clock
	if now == nil {
		now = time.Now
	}
	return &authService{db: db, users: repos.Users, site: site, secret: []byte(secret), expiry: expiry, now: now}
}

// TokenLogin identifies the user holding a physical token. Unknown tokens
// are remembered so they can be assigned later. The password is asked for
// when the site requires one and the last successful login is too old.
func (s *authService) TokenLogin(ctx context.Context, req dto.TokenLoginRequest) (*dto.LoginResponse, error) {
	site, err := s.site.Site(ctx)
	if err != nil {
		return nil, err
	}
	var user *model.User
	var refused error
	err = runTx(ctx, s.db, func(ctx context.Context) error {
		now := s.now()
		tok, err := s.users.FindToken(ctx, req.Token)
		if repository.IsNotFound(err) {
			log.Info().Str("token", req.Token).Msg("unrecognised user token recorded")
			refused = apperr.Unauthorized("token %s is not assigned to a user", req.Token)
			return s.users.SaveToken(ctx, &model.UserToken{Token: req.Token, LastSeen: &now})
		}
		if err != nil {
			return err
		}
		tok.LastSeen = &now
		if refused = s.checkTokenLogin(site, tok, req.Password, now); refused != nil {
			return s.users.SaveToken(ctx, tok)
		}
		tok.LastSuccessfulLogin = &now
		if err := s.users.SaveToken(ctx, tok); err != nil {
			return err
		}
		user = tok.User
		user.LastSeen = &now
		return s.users.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	if refused != nil {
		return nil, refused
	}
	return s.issue(user)
}

// PasswordLogin checks a user's password. Without a user id the password
// alone must pick out exactly one enabled user.
func (s *authService) PasswordLogin(ctx context.Context, req dto.PasswordLoginRequest) (*dto.LoginResponse, error) {
	var user *model.User
	if req.UserID != nil {
		u, err := s.users.FindUser(ctx, *req.UserID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, apperr.Unauthorized("invalid credentials")
			}
			return nil, err
		}
		if !u.Enabled || !checkPassword(u, req.Password) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		user = u
	} else {
		site, err := s.site.Site(ctx)
		if err != nil {
			return nil, err
		}
		if !site.AllowPasswordOnlyLogin {
			return nil, apperr.User("a user must be chosen before entering a password")
		}
		users, err := s.users.ListUsers(ctx, false)
		if err != nil {
			return nil, err
		}
		candidates := make([]*model.User, 0, len(users))
		for i := range users {
			if users[i].PasswordHash != nil {
				candidates = append(candidates, &users[i])
			}
		}
		if len(candidates) > maxPasswordOnlyUsers {
			return nil, apperr.User("too many users have passwords to log in by password alone; choose a user first")
		}
		for _, u := range candidates {
			if !checkPassword(u, req.Password) {
				continue
			}
			if user != nil {
				return nil, apperr.Unauthorized("password does not identify a single user")
			}
			user = u
		}
		if user == nil {
			return nil, apperr.Unauthorized("invalid credentials")
		}
	}
	now := s.now()
	user.LastSeen = &now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// checkTokenLogin returns why the holder of tok may not log in, or nil.
func (s *authService) checkTokenLogin(site config.Site, tok *model.UserToken, password *string, now time.Time) error {
	u := tok.User
	if u == nil {
		return apperr.Unauthorized("token %s is not assigned to a user", tok.Token)
	}
	if !u.Enabled {
		return apperr.Unauthorized("user %s is disabled", u.ShortName)
	}
	if u.PasswordHash == nil {
		if site.RequireUserPasswords {
			return apperr.User("%s must set a password before logging in", u.ShortName)
		}
		return nil
	}
	if site.PasswordCheckAfter == nil {
		return nil
	}
	if tok.LastSuccessfulLogin != nil && now.Sub(*tok.LastSuccessfulLogin) <= *site.PasswordCheckAfter {
		return nil
	}
	if password == nil {
		return apperr.Unauthorized("password required")
	}
	if !checkPassword(u, *password) {
		return apperr.Unauthorized("incorrect password")
	}
	return nil
}

func checkPassword(u *model.User, password string) bool {
	if u.PasswordHash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) == nil
}

func hashPassword(password string) (*string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}
	h := string(hash)
	return &h, nil
}

func (s *authService) issue(u *model.User) (*dto.LoginResponse, error) {
	token, err := s.generateToken(u)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("user_id", u.ID).Str("user", u.ShortName).Msg("login")
	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.expiry / time.Second),
		User:        userResponse(u),
	}, nil
}

func (s *authService) generateToken(u *model.User) (string, error) {
	perms := make([]string, 0)
	for id := range u.PermissionSet() {
		perms = append(perms, id)
	}
	sort.Strings(perms)
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":     u.ID,
		"name":        u.ShortName,
		"superuser":   u.Superuser,
		"permissions": perms,
		"exp":         now.Add(s.expiry).Unix(),
		"iat":         now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func userResponse(u *model.User) dto.UserResponse {
	r := dto.UserResponse{
		ID:          u.ID,
		FullName:    u.FullName,
		ShortName:   u.ShortName,
		Enabled:     u.Enabled,
		Superuser:   u.Superuser,
		HasPassword: u.PasswordHash != nil,
		LastSeen:    u.LastSeen,
		Permissions: []string{},
		Groups:      []string{},
		Tokens:      []string{},
	}
	for _, p := range u.Permissions {
		r.Permissions = append(r.Permissions, p.ID)
	}
	for _, g := range u.Groups {
		r.Groups = append(r.Groups, g.ID)
	}
	for _, t := range u.Tokens {
		r.Tokens = append(r.Tokens, t.Token)
	}
	return r
}
