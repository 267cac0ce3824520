package user_test

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/user"
	emailsvc "github.com/trezcool/balozi/services/email"
	inmemdb "github.com/trezcool/balozi/storage/database/inmem"
)

func setup(t *testing.T) (*core.Config, *user.Service) {
	t.Helper()

	conf := &core.Config{
		TestMode:                  true,
		AppName:                   "Balozi",
		SecretKey:                 []byte("secret"),
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 72 * time.Hour,
	}
	db, err := inmemdb.Open()
	require.NoError(t, err)

	emailsvc.ClearSentMessages()
	return conf, user.NewService(conf, inmemdb.NewUserRepository(db), emailsvc.NewConsoleServiceMock(conf))
}

func newUser(name, uname, email string) user.NewUser {
	return user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        "LeP@ssword1",
		PasswordConfirm: "LeP@ssword1",
	}
}

func TestNewUser_Validate(t *testing.T) {
	ctx := context.Background()
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	_, svc := setup(t)
	_, err := svc.Create(ctx, newUser("Existing", "existing", "existing@test.cd"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*user.NewUser)
		wantErr bool
	}{
		{name: "ok", mutate: func(nu *user.NewUser) {}},
		{name: "username or email required", mutate: func(nu *user.NewUser) { nu.Username, nu.Email = "", "" }, wantErr: true},
		{name: "weak password", mutate: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "password1!", "password1!" }, wantErr: true},
		{name: "blank name", mutate: func(nu *user.NewUser) { nu.Name = "  " }, wantErr: true},
		{name: "short username", mutate: func(nu *user.NewUser) { nu.Username = "abc" }, wantErr: true},
		{name: "bad email", mutate: func(nu *user.NewUser) { nu.Email = "nope" }, wantErr: true},
		{name: "bad phone", mutate: func(nu *user.NewUser) { nu.Phone = "12345" }, wantErr: true},
		{name: "password mismatch", mutate: func(nu *user.NewUser) { nu.PasswordConfirm = "other" }, wantErr: true},
		{name: "unknown role", mutate: func(nu *user.NewUser) { nu.Roles = []string{"root:"} }, wantErr: true},
		{name: "known roles", mutate: func(nu *user.NewUser) { nu.Roles = []string{user.RoleAdmin, user.RoleAmbassador} }},
		{name: "username taken", mutate: func(nu *user.NewUser) { nu.Username = "Existing" }, wantErr: true},
		{name: "email taken", mutate: func(nu *user.NewUser) { nu.Email = "EXISTING@test.cd" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := newUser("Jane Doe", "janedoe", "jane@test.cd")
			tt.mutate(&nu)
			err := nu.Validate(validate, svc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)

	usr, err := svc.Create(ctx, newUser("Jane Doe", "janedoe", "jane@test.cd"))
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.Equal(t, []string{user.RoleAmbassador}, usr.Roles, "default role")
	assert.True(t, usr.IsAmbassador())
	assert.False(t, usr.IsAdmin())
	assert.NoError(t, usr.CheckPassword("LeP@ssword1"))
	assert.Error(t, usr.CheckPassword("wrong"))

	// lookups
	got, err := svc.GetByUsername(ctx, "JaneDoe")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	got, err = svc.GetByUsernameOrEmail(ctx, "JANE@test.cd")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	_, err = svc.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)

	usr, err := svc.Create(ctx, newUser("Jane Doe", "janedoe", "jane@test.cd"))
	require.NoError(t, err)

	inactive := false
	got, err := svc.Update(ctx, usr.ID, user.UpdateUser{
		Name:     "Jane D.",
		Roles:    []string{user.RoleAdminCoordinator},
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane D.", got.Name)
	assert.Equal(t, "janedoe", got.Username, "omitted fields keep their values")
	assert.Equal(t, []string{user.RoleAdminCoordinator}, got.Roles)
	assert.False(t, got.IsActive)
	assert.True(t, got.IsAdmin())
}

func TestService_passwordReset(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)

	usr, err := svc.Create(ctx, newUser("Jane Doe", "janedoe", "jane@test.cd"))
	require.NoError(t, err)

	// unknown email: no error, no email (account existence is not leaked)
	require.NoError(t, svc.RequestPasswordReset(ctx, "ghost@test.cd"))
	assert.Empty(t, emailsvc.SentMessages)

	require.NoError(t, svc.RequestPasswordReset(ctx, "jane@test.cd"))
	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, "jane@test.cd", msg.To[0].Address)

	// pull the reset link out of the rendered email
	link := regexp.MustCompile(`uid=([^&\s]+)&token=(\S+)`).FindStringSubmatch(msg.TextContent)
	require.Len(t, link, 3, "reset link not found in %q", msg.TextContent)
	uid, token := link[1], link[2]

	_, err = svc.ConfirmPasswordReset(ctx, uid, "bogus-token", "NewP@ss1")
	assert.Error(t, err)

	got, err := svc.ConfirmPasswordReset(ctx, uid, token, "NewP@ss1")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.NoError(t, got.CheckPassword("NewP@ss1"))
	assert.Error(t, got.CheckPassword("LeP@ssword1"))

	// the token is single-use: the password change invalidates it
	_, err = svc.ConfirmPasswordReset(ctx, uid, token, "Again1!")
	assert.Error(t, err)
}

func TestService_ImportCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("create and update", func(t *testing.T) {
		_, svc := setup(t)

		existing, err := svc.Create(ctx, newUser("Old Name", "oldname", "amina@test.cd"))
		require.NoError(t, err)

		csv := strings.Join([]string{
			"name,email,phone,username,roles",
			"Amina Kalala,AMINA@test.cd,(555) 123-4567,amina,ambassador:",
			"Coord One,coord@test.cd,,coord1,admin:coordinator;ambassador:",
			"No Roles,noroles@test.cd,,,",
		}, "\n")

		count, err := svc.ImportCSV(ctx, strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		// matched on email and updated in place
		usr, err := svc.GetByEmail(ctx, "amina@test.cd")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, usr.ID)
		assert.Equal(t, "Amina Kalala", usr.Name)
		assert.Equal(t, "5551234567", usr.Phone)
		assert.Equal(t, "amina", usr.Username)

		usr, err = svc.GetByEmail(ctx, "coord@test.cd")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{user.RoleAdminCoordinator, user.RoleAmbassador}, usr.Roles)
		assert.True(t, usr.IsActive)

		usr, err = svc.GetByEmail(ctx, "noroles@test.cd")
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleAmbassador}, usr.Roles, "roles default to ambassador")
	})

	t.Run("bad rows abort with line context", func(t *testing.T) {
		_, svc := setup(t)

		count, err := svc.ImportCSV(ctx, strings.NewReader(",missing-name@test.cd,,,"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1")
		assert.Zero(t, count)

		_, err = svc.ImportCSV(ctx, strings.NewReader("Short,Row"))
		require.Error(t, err)
	})
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, user.MaxRolePriority(nil))
	assert.Equal(t, 1, user.MaxRolePriority([]string{user.RoleAmbassador}))
	assert.Equal(t, 30, user.MaxRolePriority([]string{user.RoleAmbassador, user.RoleAdminOwner}))
	assert.True(t,
		user.MaxRolePriority([]string{user.RoleAdminOwner}) > user.MaxRolePriority([]string{user.RoleAdminCoordinator}),
	)
	assert.Equal(t, 0, user.RolePriority("made-up"))
}

func TestUser_rolePredicates(t *testing.T) {
	admin := user.User{Roles: []string{user.RoleAdminCoordinator}}
	assert.True(t, admin.IsAdmin())
	assert.False(t, admin.IsAmbassador())

	amb := user.User{Roles: []string{user.RoleAmbassador}}
	assert.False(t, amb.IsAdmin())
	assert.True(t, amb.IsAmbassador())

	var nobody user.User
	assert.False(t, nobody.IsAdmin())
}
