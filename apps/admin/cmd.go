package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
	"github.com/trezcool/roster/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("migrate needs the postgres engine")
)

type commandLine struct {
	conf      *core.Config
	db        *sql.DB // nil with the in-memory engine
	schoolSvc *school.Service
	importSvc *importer.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose command (up, down, status...)")
	_, _ = fmt.Fprintln(cli.out, "  addschool -name NAME - create a school")
	_, _ = fmt.Fprintln(cli.out, "  adduser -school ID -email EMAIL [-phone PHONE -given NAME -family NAME] - add or update an admin")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -school ID -email EMAIL - reset an admin's password")
	_, _ = fmt.Fprintln(cli.out, "  import -school ID -kind admin|parent|student -action create|update|delete -file FILE [-abort] [-report FILE]")
	_, _ = fmt.Fprintln(cli.out, "  export -school ID -kind admin|parent|student [-out FILE]")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addSchoolCmd := cli.newFlagSet("addschool")
	addSchoolName := addSchoolCmd.String("name", "", "The school's name.")

	addUserCmd := cli.newFlagSet("adduser")
	addUserSchool := addUserCmd.String("school", "", "The school's ID.")
	addUserEmail := addUserCmd.String("email", "", "The admin's email. The password will be prompted next.")
	addUserPhone := addUserCmd.String("phone", "", "The admin's phone number.")
	addUserGiven := addUserCmd.String("given", "", "The admin's given name.")
	addUserFamily := addUserCmd.String("family", "", "The admin's family name.")

	resetPasswordCmd := cli.newFlagSet("resetpassword")
	resetPasswordSchool := resetPasswordCmd.String("school", "", "The school's ID.")
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The admin's email. The password will be prompted next.")

	importCmd := cli.newFlagSet("import")
	importSchool := importCmd.String("school", "", "The school's ID.")
	importKind := importCmd.String("kind", "", "The entity kind: admin, parent or student.")
	importAction := importCmd.String("action", "", "create, update or delete.")
	importFile := importCmd.String("file", "", "The file to import.")
	importAbort := importCmd.Bool("abort", false, "Apply nothing when any row is invalid.")
	importReport := importCmd.String("report", "", "Where to write the rejected rows.")

	exportCmd := cli.newFlagSet("export")
	exportSchool := exportCmd.String("school", "", "The school's ID.")
	exportKind := exportCmd.String("kind", "", "The entity kind: admin, parent or student.")
	exportOut := exportCmd.String("out", "", "The file to write (default: standard output).")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addschool":
		if err := addSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if strings.TrimSpace(*addSchoolName) == "" {
			addSchoolCmd.Usage()
			return errHelp
		}
		return cli.addSchool(*addSchoolName)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserSchool == "" || *addUserEmail == "" {
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
		return cli.addUser(school.NewAdmin{
			SchoolID:        *addUserSchool,
			Email:           *addUserEmail,
			PhoneNumber:     *addUserPhone,
			GivenName:       *addUserGiven,
			FamilyName:      *addUserFamily,
			Password:        pwd,
			PasswordConfirm: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordSchool == "" || *resetPasswordEmail == "" {
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
		return cli.resetPassword(*resetPasswordSchool, *resetPasswordEmail, pwd)

	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importSchool == "" || *importKind == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importFile(*importSchool, *importKind, *importAction, *importFile, *importAbort, *importReport)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportSchool == "" || *exportKind == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(*exportSchool, *exportKind, *exportOut)

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
