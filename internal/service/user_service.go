package service

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/permission"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// UserService administers users, their tokens, groups and grants.
type UserService interface {
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error)
	GetUser(ctx context.Context, id int64) (*dto.UserResponse, error)
	ListUsers(ctx context.Context, includeDisabled bool) ([]dto.UserResponse, error)
	UpdateUser(ctx context.Context, id int64, req dto.UpdateUserRequest) (*dto.UserResponse, error)
	AddToken(ctx context.Context, userID int64, req dto.AddTokenRequest) (*dto.TokenResponse, error)
	ShowToken(ctx context.Context, token string) (*dto.TokenResponse, error)
	Grant(ctx context.Context, userID int64, req dto.GrantRequest) (*dto.UserResponse, error)
	SaveGroup(ctx context.Context, req dto.GroupRequest) error
	AddToGroup(ctx context.Context, userID int64, req dto.AddToGroupRequest) (*dto.UserResponse, error)
	ListPermissions(ctx context.Context) ([]dto.PermissionResponse, error)
	SyncPermissions(ctx context.Context) error
	Anonymise(ctx context.Context) (int64, error)
}

type userService struct {
	db    *gorm.DB
	users repository.UserRepository
}

func NewUserService(db *gorm.DB, repos Repositories) UserService {
	return &userService{db: db, users: repos.Users}
}

func checkPermissionIDs(ids []string) error {
	for _, id := range ids {
		if _, ok := permission.Lookup(id); !ok {
			return apperr.User("unknown permission %q", id)
		}
	}
	return nil
}

func (s *userService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if err := checkPermissionIDs(req.Permissions); err != nil {
		return nil, err
	}
	u := &model.User{FullName: req.FullName, ShortName: req.ShortName, Enabled: true, Superuser: req.Superuser}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		if err := s.users.CreateUser(ctx, u); err != nil {
			return err
		}
		for _, p := range req.Permissions {
			if err := s.users.GrantPermission(ctx, u.ID, p); err != nil {
				return err
			}
		}
		for _, g := range req.Groups {
			if err := s.users.AddUserToGroup(ctx, u.ID, g); err != nil {
				if repository.IsNotFound(err) {
					return apperr.User("group %s does not exist", g)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("user_id", u.ID).Str("user", u.ShortName).Bool("superuser", u.Superuser).Msg("user created")
	return s.GetUser(ctx, u.ID)
}

func (s *userService) find(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.FindUser(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("user %d not found", id)
		}
		return nil, err
	}
	return u, nil
}

func (s *userService) GetUser(ctx context.Context, id int64) (*dto.UserResponse, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	r := userResponse(u)
	return &r, nil
}

func (s *userService) ListUsers(ctx context.Context, includeDisabled bool) ([]dto.UserResponse, error) {
	users, err := s.users.ListUsers(ctx, includeDisabled)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.UserResponse, len(users))
	for i := range users {
		resp[i] = userResponse(&users[i])
	}
	return resp, nil
}

func (s *userService) UpdateUser(ctx context.Context, id int64, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.ShortName != nil {
		u.ShortName = *req.ShortName
	}
	if req.Enabled != nil {
		u.Enabled = *req.Enabled
	}
	if req.Superuser != nil {
		u.Superuser = *req.Superuser
	}
	if req.Password != nil {
		if u.PasswordHash, err = hashPassword(*req.Password); err != nil {
			return nil, err
		}
	}
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	r := userResponse(u)
	return &r, nil
}

func tokenResponse(t *model.UserToken) *dto.TokenResponse {
	r := &dto.TokenResponse{
		Token:               t.Token,
		Description:         t.Description,
		UserID:              t.UserID,
		LastSeen:            t.LastSeen,
		LastSuccessfulLogin: t.LastSuccessfulLogin,
	}
	if t.User != nil {
		r.UserName = t.User.FullName
	}
	return r
}

// AddToken assigns a token to a user. A token already seen by a terminal
// keeps its history; one that belongs to someone else is refused.
func (s *userService) AddToken(ctx context.Context, userID int64, req dto.AddTokenRequest) (*dto.TokenResponse, error) {
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out *model.UserToken
	err = runTx(ctx, s.db, func(ctx context.Context) error {
		t, err := s.users.FindToken(ctx, req.Token)
		switch {
		case repository.IsNotFound(err):
			t = &model.UserToken{Token: req.Token}
		case err != nil:
			return err
		case t.UserID != nil && *t.UserID != userID:
			return apperr.User("token %s already belongs to user %d", req.Token, *t.UserID)
		}
		t.UserID = &u.ID
		t.Description = req.Description
		t.User = u
		out = t
		return s.users.SaveToken(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return tokenResponse(out), nil
}

func (s *userService) ShowToken(ctx context.Context, token string) (*dto.TokenResponse, error) {
	t, err := s.users.FindToken(ctx, token)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("token %s has never been seen", token)
		}
		return nil, err
	}
	return tokenResponse(t), nil
}

func (s *userService) Grant(ctx context.Context, userID int64, req dto.GrantRequest) (*dto.UserResponse, error) {
	if err := checkPermissionIDs([]string{req.Permission}); err != nil {
		return nil, err
	}
	if _, err := s.find(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.GrantPermission(ctx, userID, req.Permission); err != nil {
		return nil, err
	}
	log.Info().Int64("user_id", userID).Str("permission", req.Permission).Msg("permission granted")
	return s.GetUser(ctx, userID)
}

func (s *userService) SaveGroup(ctx context.Context, req dto.GroupRequest) error {
	if err := checkPermissionIDs(req.Permissions); err != nil {
		return err
	}
	g := &model.Group{ID: req.ID, Description: req.Description}
	for _, p := range req.Permissions {
		g.Permissions = append(g.Permissions, model.Permission{ID: p})
	}
	return s.users.SaveGroup(ctx, g)
}

func (s *userService) AddToGroup(ctx context.Context, userID int64, req dto.AddToGroupRequest) (*dto.UserResponse, error) {
	if _, err := s.find(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.AddUserToGroup(ctx, userID, req.Group); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.User("group %s does not exist", req.Group)
		}
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *userService) ListPermissions(ctx context.Context) ([]dto.PermissionResponse, error) {
	perms, err := s.users.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PermissionResponse, len(perms))
	for i, p := range perms {
		out[i] = dto.PermissionResponse{ID: p.ID, Description: p.Description}
	}
	return out, nil
}

// SyncPermissions writes the compiled-in catalogue to the database.
func (s *userService) SyncPermissions(ctx context.Context) error {
	return s.users.SyncPermissions(ctx, permission.Models())
}

// Anonymise forgets the names, passwords and tokens of disabled users.
func (s *userService) Anonymise(ctx context.Context) (int64, error) {
	var n int64
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		n, err = s.users.AnonymiseUsers(ctx)
		return err
	})
	if err == nil {
		log.Info().Int64("count", n).Msg("disabled users anonymised")
	}
	return n, err
}
