package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc   *user.Service
	schSvc   *school.Service
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  addschool -slug SLUG -name NAME - register a school")
	_, _ = fmt.Fprintln(cli.out, "  adduser -school ID|SLUG -name NAME -role ROLE [-username USERNAME] [-email EMAIL] - create a user")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -school ID|SLUG -username USERNAME|EMAIL - reset user's password")
	_, _ = fmt.Fprintln(cli.out, "  setactive -school ID|SLUG [-username USERNAME|EMAIL] -active=true|false - (de)activate a user, or the school")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addSchoolCmd := flag.NewFlagSet("addschool", flag.ContinueOnError)
	addSchoolSlug := addSchoolCmd.String("slug", "", "The school's unique slug, e.g.: green-hill")
	addSchoolName := addSchoolCmd.String("name", "", "The school's name")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserSchool := addUserCmd.String("school", "", "The school's ID or slug")
	addUserName := addUserCmd.String("name", "", "The user's full name")
	addUserUname := addUserCmd.String("username", "", "The user's username")
	addUserEmail := addUserCmd.String("email", "", "The user's email. Required for system admins.")
	addUserRole := addUserCmd.String("role", "", fmt.Sprintf("One of %v. The password will be prompted next.", user.AllRoles))

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordSchool := resetPasswordCmd.String("school", "", "The school's ID or slug")
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	setActiveCmd := flag.NewFlagSet("setactive", flag.ContinueOnError)
	setActiveSchool := setActiveCmd.String("school", "", "The school's ID or slug")
	setActiveUname := setActiveCmd.String("username", "", "The user's username or email. The school itself is updated when empty.")
	setActiveValue := setActiveCmd.Bool("active", true, "Whether the account is active")

	for _, cmd := range []*flag.FlagSet{addSchoolCmd, addUserCmd, resetPasswordCmd, setActiveCmd} {
		cmd.SetOutput(cli.out)
	}

	switch args[1] {
	case "addschool":
		if err := addSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSchoolSlug == "" || *addSchoolName == "" {
			addSchoolCmd.Usage()
			return errHelp
		}
		return cli.addSchool(ctx, *addSchoolSlug, *addSchoolName)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserSchool == "" || *addUserName == "" || *addUserRole == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *addUserSchool, user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Role:            *addUserRole,
			Password:        pwd,
			PasswordConfirm: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordSchool == "" || *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordSchool, *resetPasswordUname, pwd)

	case "setactive":
		if err := setActiveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setActiveSchool == "" {
			setActiveCmd.Usage()
			return errHelp
		}
		return cli.setActive(ctx, *setActiveSchool, *setActiveUname, *setActiveValue)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func newCommandLine(usrSvc *user.Service, schSvc *school.Service, validate *validator.Validate) *commandLine {
	return &commandLine{
		usrSvc:   usrSvc,
		schSvc:   schSvc,
		validate: validate,
		out:      os.Stdout,
	}
}
