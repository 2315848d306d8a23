package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

type authFixture struct {
	*fixture
	auth AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	f := newFixture(t)
	return &authFixture{fixture: f, auth: NewAuthService(nil, f.repos, f.site, testSecret, time.Hour)}
}

// addUser stores a user directly, hashing the password cheaply.
func (f *authFixture) addUser(short string, password string, perms ...string) *model.User {
	f.t.Helper()
	u := &model.User{FullName: short + " Smith", ShortName: short, Enabled: true}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(f.t, err)
		h := string(hash)
		u.PasswordHash = &h
	}
	require.NoError(f.t, f.store.CreateUser(f.ctx, u))
	for _, p := range perms {
		require.NoError(f.t, f.store.GrantPermission(f.ctx, u.ID, p))
	}
	return u
}

func (f *authFixture) addToken(token string, userID int64) {
	f.t.Helper()
	require.NoError(f.t, f.store.SaveToken(f.ctx, &model.UserToken{Token: token, UserID: &userID}))
}

func claimsOf(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}, jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	return parsed.Claims.(jwt.MapClaims)
}

// ── Token login ──────────────────────────────────────────────────────────────

func TestTokenLogin(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser("Alice", "", "sell", "take-payment")
	require.NoError(t, f.store.SaveGroup(f.ctx, &model.Group{ID: "bar", Description: "Bar staff", Permissions: []model.Permission{{ID: "void"}}}))
	require.NoError(t, f.store.AddUserToGroup(f.ctx, u.ID, "bar"))
	f.addToken("nfc:0401", u.ID)

	resp, err := f.auth.TokenLogin(f.ctx, dto.TokenLoginRequest{Token: "nfc:0401"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, u.ID, resp.User.ID)

	claims := claimsOf(t, resp.AccessToken)
	assert.Equal(t, float64(u.ID), claims["user_id"])
	assert.Equal(t, "Alice", claims["name"])
	assert.Equal(t, []interface{}{"sell", "take-payment", "void"}, claims["permissions"])
	assert.Equal(t, float64(f.clock.now().Add(time.Hour).Unix()), claims["exp"])

	tok := f.store.tokens["nfc:0401"]
	require.NotNil(t, tok.LastSuccessfulLogin)
	assert.Equal(t, f.clock.now(), *tok.LastSuccessfulLogin)
	require.NotNil(t, f.store.users[u.ID].LastSeen)
}

func TestTokenLogin_UnknownTokenIsRemembered(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.TokenLogin(f.ctx, dto.TokenLoginRequest{Token: "nfc:ffff"})

	requireKind(t, err, apperr.KindUnauthorized)
	tok, ok := f.store.tokens["nfc:ffff"]
	require.True(t, ok)
	assert.Nil(t, tok.UserID)
	require.NotNil(t, tok.LastSeen)
	assert.Equal(t, f.clock.now(), *tok.LastSeen)
}

func TestTokenLogin_DisabledUser(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser("Bob", "")
	f.addToken("nfc:0402", u.ID)
	u.Enabled = false
	require.NoError(t, f.store.UpdateUser(f.ctx, u))

	_, err := f.auth.TokenLogin(f.ctx, dto.TokenLoginRequest{Token: "nfc:0402"})

	requireKind(t, err, apperr.KindUnauthorized)
	assert.Nil(t, f.store.tokens["nfc:0402"].LastSuccessfulLogin)
	assert.NotNil(t, f.store.tokens["nfc:0402"].LastSeen)
}

func TestTokenLogin_PasswordRequiredBySite(t *testing.T) {
	f := newAuthFixture(t)
	f.site.site.RequireUserPasswords = true
	u := f.addUser("Carol", "")
	f.addToken("nfc:0403", u.ID)

	_, err := f.auth.TokenLogin(f.ctx, dto.TokenLoginRequest{Token: "nfc:0403"})

	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "must set a password")
}

func TestTokenLogin_PasswordCheckInterval(t *testing.T) {
	f := newAuthFixture(t)
	f.site.site.PasswordCheckAfter = ptr(time.Hour)
	u := f.addUser("Dave", "hunter2")
	f.addToken("nfc:0404", u.ID)
	login := func(password *string) error {
		_, err := f.auth.TokenLogin(f.ctx, dto.TokenLoginRequest{Token: "nfc:0404", Password: password})
		return err
	}

	requireKind(t, login(nil), apperr.KindUnauthorized)
	requireKind(t, login(ptr("hunter3")), apperr.KindUnauthorized)
	require.NoError(t, login(ptr("hunter2")))

	f.clock.advance(30 * time.Minute)
	require.NoError(t, login(nil))

	f.clock.advance(61 * time.Minute)
	err := login(nil)
	requireKind(t, err, apperr.KindUnauthorized)
	assert.Contains(t, err.Error(), "password required")
}

func TestTokenLogin_NoCheckIntervalNeverAsks(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser("Erin", "secret")
	f.addToken("nfc:0405", u.ID)

	_, err := f.auth.TokenLogin(f.ctx, dto.TokenLoginRequest{Token: "nfc:0405"})

	require.NoError(t, err)
}

// ── Password login ───────────────────────────────────────────────────────────

func TestPasswordLogin_WithUser(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser("Fred", "letmein")
	nopass := f.addUser("Gina", "")

	_, err := f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{UserID: &u.ID, Password: "wrong"})
	requireKind(t, err, apperr.KindUnauthorized)

	_, err = f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{UserID: &nopass.ID, Password: ""})
	requireKind(t, err, apperr.KindUnauthorized)

	_, err = f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{UserID: ptr(int64(999)), Password: "letmein"})
	requireKind(t, err, apperr.KindUnauthorized)

	resp, err := f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{UserID: &u.ID, Password: "letmein"})
	require.NoError(t, err)
	assert.Equal(t, "Fred", resp.User.ShortName)
	assert.True(t, resp.User.HasPassword)
	require.NotNil(t, f.store.users[u.ID].LastSeen)
}

func TestPasswordLogin_PasswordOnly(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("Hal", "alpha")
	f.addUser("Ivy", "beta")

	_, err := f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{Password: "alpha"})
	requireKind(t, err, apperr.KindUser)

	f.site.site.AllowPasswordOnlyLogin = true
	resp, err := f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{Password: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, "Hal", resp.User.ShortName)

	_, err = f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{Password: "gamma"})
	requireKind(t, err, apperr.KindUnauthorized)

	f.addUser("Jo", "beta")
	_, err = f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{Password: "beta"})
	requireKind(t, err, apperr.KindUnauthorized)
	assert.Contains(t, err.Error(), "single user")
}

func TestPasswordLogin_PasswordOnlyIgnoresUsersWithoutPasswords(t *testing.T) {
	f := newAuthFixture(t)
	f.site.site.AllowPasswordOnlyLogin = true
	for i := 0; i < maxPasswordOnlyUsers+4; i++ {
		f.addUser(fmt.Sprintf("Bar%d", i), "")
	}
	f.addUser("Kim", "kappa")

	resp, err := f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{Password: "kappa"})
	require.NoError(t, err)
	assert.Equal(t, "Kim", resp.User.ShortName)
}

func TestPasswordLogin_PasswordOnlyTooManyCandidates(t *testing.T) {
	f := newAuthFixture(t)
	f.site.site.AllowPasswordOnlyLogin = true
	var last *model.User
	for i := 0; i <= maxPasswordOnlyUsers; i++ {
		last = f.addUser(fmt.Sprintf("Staff%d", i), fmt.Sprintf("pw%d", i))
	}

	_, err := f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{Password: "pw0"})
	requireKind(t, err, apperr.KindUser)
	assert.Contains(t, err.Error(), "choose a user first")

	resp, err := f.auth.PasswordLogin(f.ctx, dto.PasswordLoginRequest{UserID: &last.ID, Password: fmt.Sprintf("pw%d", maxPasswordOnlyUsers)})
	require.NoError(t, err)
	assert.Equal(t, last.ID, resp.User.ID)
}
