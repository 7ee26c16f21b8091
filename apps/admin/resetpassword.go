package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, schoolRef, login, pwd string) error {
	sch, err := cli.schSvc.Resolve(ctx, schoolRef)
	if err != nil {
		return err
	}
	if _, err = cli.usrSvc.ResetPassword(ctx, cli.validate, sch.ID, login, pwd); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, "password updated")
	return nil
}

// setActive (de)activates the user login of a school, or the school itself when login is empty.
func (cli *commandLine) setActive(ctx context.Context, schoolRef, login string, active bool) error {
	if login == "" {
		sch, err := cli.schSvc.SetActive(ctx, schoolRef, active)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.out, "school %q active: %t\n", sch.Slug, sch.IsActive)
		return nil
	}

	sch, err := cli.schSvc.Resolve(ctx, schoolRef)
	if err != nil {
		return err
	}
	usr, err := cli.usrSvc.SetActive(ctx, sch.ID, login, active)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "user %q active: %t\n", usr.Username, usr.IsActive)
	return nil
}
