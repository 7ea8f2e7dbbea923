package importer

import (
	"bytes"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/school"
)

const reportTemplate = "import_report"

type reportMailData struct {
	Recipient string
	Kind      string
	Filename  string
	Action    Action
	Status    Status
	Inserted  int
	Updated   int
	Deleted   int
	Rejected  int
}

func (svc *Service) mailReport(to school.Admin, kind *Kind, req Request, res *Result) error {
	recipient := to.FullName()
	if recipient == "" {
		recipient = to.Email
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: to.FullName(), Address: to.Email}},
		Subject:      "Rejected rows of your " + kind.Name + " upload",
		TemplateName: reportTemplate,
		TemplateData: reportMailData{
			Recipient: recipient,
			Kind:      kind.Name,
			Filename:  req.Filename,
			Action:    res.Action,
			Status:    res.Status,
			Inserted:  len(res.Inserted),
			Updated:   len(res.Updated),
			Deleted:   len(res.Deleted),
			Rejected:  len(res.Errors),
		},
	}
	if err := msg.Attach(bytes.NewReader(res.Report), reportFilename(kind, req.Filename), ReportContentType); err != nil {
		return errors.Wrap(err, "attaching report")
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

// reportFilename derives the report name from the uploaded file: "parents.csv" gives "parents-errors.csv".
func reportFilename(kind *Kind, uploaded string) string {
	base := strings.TrimSuffix(filepath.Base(uploaded), filepath.Ext(uploaded))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = kind.Name + "s"
	}
	return base + "-errors.csv"
}
