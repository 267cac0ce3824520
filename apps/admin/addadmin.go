package main

import (
	"context"
	"time"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/user"
)

// addAdmin updates or creates an owner-level admin account.
func (cli *commandLine) addAdmin(uname, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: time.Now().UTC(),
		}
	}
	usr.Roles = user.AllRoles
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	return cli.usrSvc.UpdateOrCreate(ctx, usr)
}
