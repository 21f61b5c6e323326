package main

import (
	"errors"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// addUser updates or creates a user.User. Only admins are provisioned from
// the command line; teachers and students go through the API so their role
// profiles get created alongside.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(uname)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		if !isAdmin {
			return errors.New("only admin users can be created from the command line")
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			Role:      user.RoleAdmin,
			CreatedAt: time.Now().UTC(),
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		usr.IsActive = true
		usr.UpdatedAt = usr.CreatedAt
		_, err = cli.usrRepo.CreateUser(usr)
		return err
	}

	// roles are immutable once assigned
	if isAdmin && usr.Role != user.RoleAdmin {
		return errors.New("user exists with a different role; roles cannot be changed")
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	isActive := true
	_, err = cli.usrRepo.UpdateUser(usr, &isActive)
	return err
}
