package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core/importer"
)

func (cli *commandLine) importFile(schoolID, kind, action, path string, abort bool, reportPath string) error {
	ctx := context.Background()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading file")
	}

	res, err := cli.importSvc.Import(ctx, importer.Request{
		Kind:         kind,
		SchoolID:     schoolID,
		Action:       action,
		ThrowInError: abort,
		WithReport:   reportPath != "",
		Filename:     filepath.Base(path),
		Data:         data,
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cli.out, "%s %s (%s): %s\n", res.Kind, res.Action, res.Encoding, res.Status)
	_, _ = fmt.Fprintf(cli.out, "inserted: %d, updated: %d, deleted: %d, errors: %d\n",
		len(res.Inserted), len(res.Updated), len(res.Deleted), len(res.Errors))
	for _, re := range res.Errors {
		fields := make([]string, 0, len(re.Errors))
		for f := range re.Errors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			_, _ = fmt.Fprintf(cli.out, "  line %d: %s: %s (%s)\n", re.Line, f, re.Errors[f], re.Reason)
		}
	}

	if len(res.Report) > 0 {
		if err = ioutil.WriteFile(reportPath, res.Report, 0644); err != nil {
			return errors.Wrap(err, "writing report")
		}
		_, _ = fmt.Fprintf(cli.out, "rejected rows written to %s\n", reportPath)
	}
	return nil
}

func (cli *commandLine) export(schoolID, kind, path string) error {
	data, err := cli.importSvc.Export(context.Background(), kind, schoolID)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = cli.out.Write(data)
		return err
	}
	return errors.Wrap(ioutil.WriteFile(path, data, 0644), "writing export")
}
