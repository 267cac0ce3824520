package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/hours"
	"github.com/trezcool/balozi/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB
	usrSvc   *user.Service
	hoursSvc *hours.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                - run all pending database migrations")
	fmt.Println("  addadmin -username UNAME -email EMAIL  - create an admin account; the password is prompted")
	fmt.Println("  importusers -file FILE.csv             - bulk import users from a CSV file")
	fmt.Println("  importhours -file FILE.csv             - bulk import service hour entries from a CSV file")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAdminCmd := flag.NewFlagSet("addadmin", flag.ExitOnError)
	addAdminUname := addAdminCmd.String("username", "", "The admin's username.")
	addAdminEmail := addAdminCmd.String("email", "", "The admin's email. The password will be prompted next.")

	importUsersCmd := flag.NewFlagSet("importusers", flag.ExitOnError)
	importUsersFile := importUsersCmd.String("file", "", "Path to the CSV file: name,email,phone,username,roles.")

	importHoursCmd := flag.NewFlagSet("importhours", flag.ExitOnError)
	importHoursFile := importHoursCmd.String("file", "", "Path to the CSV file: user_id,activity,description,hours,served_on,status.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "addadmin":
		if err := addAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAdminUname == "" || *addAdminEmail == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addAdminCmd.Usage()
			return errHelp
		}
		return cli.addAdmin(*addAdminUname, *addAdminEmail, string(pwd))
	case "importusers":
		if err := importUsersCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importUsersFile == "" {
			importUsersCmd.Usage()
			return errHelp
		}
		return cli.importCSV(*importUsersFile, func(f *os.File) (int, error) {
			return cli.usrSvc.ImportCSV(context.Background(), f)
		})
	case "importhours":
		if err := importHoursCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importHoursFile == "" {
			importHoursCmd.Usage()
			return errHelp
		}
		return cli.importCSV(*importHoursFile, func(f *os.File) (int, error) {
			return cli.hoursSvc.ImportCSV(context.Background(), f)
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) importCSV(path string, do func(*os.File) (int, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	count, err := do(f)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d records\n", count)
	return nil
}
