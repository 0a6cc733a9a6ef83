package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword        // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp  = errors.New("help provided")
	errNoDB  = errors.New("migrate needs a postgres database")
	errNoPwd = errors.New("a password is required")
)

type commandLine struct {
	db     *sql.DB // nil with the in-memory engine
	accSvc *account.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -name NAME -email EMAIL [-role ROLE] - create a verified account, admin by default")
	fmt.Println("  resetpassword -email EMAIL - reset an account's password")
	fmt.Println("  verify -email EMAIL - mark an account verified")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command: up, up-by-one, up-to, down, down-to, redo, reset, status, version")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The account's display name.")
	addUserEmail := addUserCmd.String("email", "", "The account's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", string(session.RoleAdmin), "One of admin, school, tutor, student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	verifyCmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	verifyEmail := verifyCmd.String("email", "", "The account's email.")

	ctx := context.Background()

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		return cli.addUser(ctx, *addUserName, *addUserEmail, session.Role(*addUserRole), pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		return cli.accSvc.SetPassword(ctx, *resetPasswordEmail, pwd)

	case "verify":
		if err := verifyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *verifyEmail == "" {
			verifyCmd.Usage()
			return errHelp
		}
		_, err := cli.accSvc.MarkVerified(ctx, *verifyEmail)
		return err

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		if cli.db == nil {
			return errNoDB
		}
		return gooseRunFunc(args[2], cli.db, args[3:]...)

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errNoPwd
	}
	return string(pwd), nil
}

// addUser creates a verified account with any role, admin included.
func (cli *commandLine) addUser(ctx context.Context, name, email string, role session.Role, pwd string) error {
	_, err := cli.accSvc.Create(ctx, account.NewAccount{
		Name:            name,
		Email:           email,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: pwd,
	}, true /* verified */)
	return err
}
