package echoapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/balozi/api/echo"
	"github.com/trezcool/balozi/core/user"
	emailsvc "github.com/trezcool/balozi/services/email"
)

func TestUserAPI_login(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "Awa Beya", "awabeya", "awa@test.cd", "S3cret!pwd", nil)

	login := func(uname, pwd string) *httptest.ResponseRecorder {
		return env.request(t, http.MethodPost, "/v1/users/login", "", map[string]string{
			"username": uname,
			"password": pwd,
		})
	}

	t.Run("by username", func(t *testing.T) {
		rec := login("awabeya", "S3cret!pwd")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.LoginResponse
		env.decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("by email", func(t *testing.T) {
		rec := login("awa@test.cd", "S3cret!pwd")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := login("awabeya", "nope")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "authentication failed"}`, rec.Body.String())
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := login("ghost", "S3cret!pwd")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "authentication failed"}`, rec.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := login("", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		env.decode(t, rec, &fldErrs)
		assert.Contains(t, fldErrs, "username")
		assert.Contains(t, fldErrs, "password")
	})

	t.Run("deactivated account", func(t *testing.T) {
		usr := env.createUser(t, "Gone User", "goneuser", "gone@test.cd", "S3cret!pwd", nil)
		inactive := false
		_, err := env.usrSvc.Update(context.Background(), usr.ID, user.UpdateUser{IsActive: &inactive})
		require.NoError(t, err)

		rec := login("goneuser", "S3cret!pwd")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error": "account deactivated"}`, rec.Body.String())
	})
}

func TestUserAPI_refreshToken(t *testing.T) {
	env := newTestEnv(t)
	usr := env.createUser(t, "Awa Beya", "awabeya", "awa@test.cd", "S3cret!pwd", nil)

	t.Run("no token", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/token-refresh", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error": "missing or malformed jwt"}`, rec.Body.String())
	})

	t.Run("ok", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/token-refresh", env.token(t, usr), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.LoginResponse
		env.decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("refresh window passed", func(t *testing.T) {
		// a token originally issued beyond the refresh window cannot be renewed
		oriat := time.Now().Add(-env.conf.JWTRefreshExpirationDelta - time.Minute).Unix()
		token, err := echoapi.GenerateToken(env.conf, echoapi.GetUserClaims(env.conf, usr, oriat))
		require.NoError(t, err)

		rec := env.request(t, http.MethodPost, "/v1/users/token-refresh", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error": "refresh has expired"}`, rec.Body.String())
	})
}

func TestUserAPI_passwordReset(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "Awa Beya", "awabeya", "awa@test.cd", "S3cret!pwd", nil)

	// unknown email: same response, nothing sent
	rec := env.request(t, http.MethodPost, "/v1/users/password-reset", "", map[string]string{"email": "ghost@test.cd"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, emailsvc.SentMessages)

	rec = env.request(t, http.MethodPost, "/v1/users/password-reset", "", map[string]string{"email": "awa@test.cd"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp echoapi.SuccessResponse
	env.decode(t, rec, &resp)
	assert.Contains(t, resp.Success, "an email will arrive in your inbox")
	require.Len(t, emailsvc.SentMessages, 1)

	match := regexp.MustCompile(`uid=([^&\s]+)&token=(\S+)`).FindStringSubmatch(emailsvc.SentMessages[0].TextContent)
	require.Len(t, match, 3)
	uid, token := match[1], match[2]

	t.Run("bogus token", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/password-reset-confirm", "", map[string]string{
			"uid":              uid,
			"token":            "HE4TS-bogussig",
			"password":         "NewS3cret!pwd",
			"password_confirm": "NewS3cret!pwd",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "invalid or expired reset link"}`, rec.Body.String())
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/password-reset-confirm", "", map[string]string{
			"uid":              uid,
			"token":            token,
			"password":         "NewS3cret!pwd",
			"password_confirm": "Different!1pwd",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		env.decode(t, rec, &fldErrs)
		assert.Contains(t, fldErrs, "password_confirm")
	})

	t.Run("ok", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/password-reset-confirm", "", map[string]string{
			"uid":              uid,
			"token":            token,
			"password":         "NewS3cret!pwd",
			"password_confirm": "NewS3cret!pwd",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// old password is out, new one is in
		rec = env.request(t, http.MethodPost, "/v1/users/login", "", map[string]string{"username": "awabeya", "password": "S3cret!pwd"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = env.request(t, http.MethodPost, "/v1/users/login", "", map[string]string{"username": "awabeya", "password": "NewS3cret!pwd"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUserAPI_register(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminToken(t)
	ambassador := env.createUser(t, "Amb", "ambassad", "amb@test.cd", "S3cret!pwd", nil)

	payload := func(uname, email string, roles ...string) map[string]interface{} {
		return map[string]interface{}{
			"name":             "New Ambassador",
			"username":         uname,
			"email":            email,
			"password":         "S3cret!pwd",
			"password_confirm": "S3cret!pwd",
			"roles":            roles,
		}
	}

	t.Run("admin only", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/register", "", payload("newbie", "newbie@test.cd"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.request(t, http.MethodPost, "/v1/users/register", env.token(t, ambassador), payload("newbie", "newbie@test.cd"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error": "permission denied"}`, rec.Body.String())
	})

	t.Run("ok", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/register", adminToken, payload("newbie", "newbie@test.cd"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		env.decode(t, rec, &usr)
		assert.Equal(t, []string{user.RoleAmbassador}, usr.Roles)
		assert.Empty(t, usr.PasswordHash)
	})

	t.Run("cannot grant a role above own", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/register", adminToken,
			payload("coordntr", "coord@test.cd", user.RoleAdminCoordinator))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		env.decode(t, rec, &fldErrs)
		assert.Equal(t, "not enough rights to set these roles", fldErrs["roles"])
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/v1/users/register", adminToken, payload("ambassad", "other@test.cd"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		env.decode(t, rec, &fldErrs)
		assert.Contains(t, fldErrs, "username")
	})
}

func TestUserAPI_detail(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminToken(t)
	awa := env.createUser(t, "Awa Beya", "awabeya", "awa@test.cd", "S3cret!pwd", nil)
	other := env.createUser(t, "Other User", "otherusr", "other@test.cd", "S3cret!pwd", nil)
	awaToken := env.token(t, awa)

	t.Run("own profile", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/v1/users/"+awa.ID, awaToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		env.decode(t, rec, &usr)
		assert.Equal(t, "awabeya", usr.Username)
	})

	t.Run("someone else's profile", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/v1/users/"+other.ID, awaToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		// admins can
		rec = env.request(t, http.MethodGet, "/v1/users/"+other.ID, adminToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/v1/users/b0gus-1d", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error": "not found"}`, rec.Body.String())
	})

	t.Run("self update", func(t *testing.T) {
		rec := env.request(t, http.MethodPut, "/v1/users/"+awa.ID, awaToken, map[string]string{"name": "Awa B. Beya"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		env.decode(t, rec, &usr)
		assert.Equal(t, "Awa B. Beya", usr.Name)
		assert.Equal(t, "awabeya", usr.Username)
	})

	t.Run("cannot grant self a role above own", func(t *testing.T) {
		rec := env.request(t, http.MethodPut, "/v1/users/"+awa.ID, awaToken,
			map[string]interface{}{"roles": []string{user.RoleAdmin}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		env.decode(t, rec, &fldErrs)
		assert.Equal(t, "not enough rights to set these roles", fldErrs["roles"])
	})

	t.Run("delete is admin only", func(t *testing.T) {
		rec := env.request(t, http.MethodDelete, "/v1/users/"+awa.ID, awaToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.request(t, http.MethodDelete, "/v1/users/"+awa.ID, adminToken, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.request(t, http.MethodGet, "/v1/users/"+awa.ID, adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUserAPI_query(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminToken(t)
	env.createUser(t, "Awa Beya", "awabeya", "awa@test.cd", "S3cret!pwd", nil)
	env.createUser(t, "Other User", "otherusr", "other@test.cd", "S3cret!pwd", nil)

	var users []user.User
	rec := env.request(t, http.MethodGet, "/v1/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.decode(t, rec, &users)
	assert.Len(t, users, 3) // the admin included

	users = nil
	rec = env.request(t, http.MethodGet, "/v1/users?search=beya", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env.decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "awabeya", users[0].Username)

	users = nil
	rec = env.request(t, http.MethodGet, "/v1/users?role="+user.RoleAdmin, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env.decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "theadmin", users[0].Username)

	rec = env.request(t, http.MethodGet, "/v1/users/roles", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roles []string
	env.decode(t, rec, &roles)
	assert.Contains(t, roles, user.RoleAmbassador)
}
