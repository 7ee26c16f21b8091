package main

import (
	"context"
	"fmt"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// addSchool registers a new, active school.
func (cli *commandLine) addSchool(ctx context.Context, slug, name string) error {
	ns := school.NewSchool{Slug: slug, Name: name}
	if err := ns.Validate(ctx, cli.validate, cli.schSvc); err != nil {
		return err
	}
	sch, err := cli.schSvc.Create(ctx, ns)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "school %q created: %s\n", sch.Slug, sch.ID)
	return nil
}

// addUser creates a user of the school referenced by schoolRef.
func (cli *commandLine) addUser(ctx context.Context, schoolRef string, nu user.NewUser) error {
	sch, err := cli.schSvc.Resolve(ctx, schoolRef)
	if err != nil {
		return err
	}
	nu.TenantID = sch.ID
	if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s %q created in %q: %s\n", usr.Role, usr.Name, sch.Slug, usr.ID)
	return nil
}
