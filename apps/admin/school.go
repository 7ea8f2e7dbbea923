package main

import (
	"context"
	"fmt"

	"github.com/trezcool/roster/core/school"
)

func (cli *commandLine) addSchool(name string) error {
	sch, err := cli.schoolSvc.CreateSchool(context.Background(), name)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "school %q created: %s\n", sch.Name, sch.ID)
	return nil
}

// addUser updates or creates an active school.Admin
func (cli *commandLine) addUser(na school.NewAdmin) error {
	adm, err := cli.schoolSvc.AddAdmin(context.Background(), na)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "admin %s saved: %s\n", adm.Email, adm.ID)
	return nil
}

func (cli *commandLine) resetPassword(schoolID, email, pwd string) error {
	_, err := cli.schoolSvc.ResetPassword(context.Background(), schoolID, email, pwd)
	return err
}
