package importer

import (
	"bytes"
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/school"
)

type Deps struct {
	Conf       *core.Config
	Logger     core.Logger
	Repos      school.Repositories
	Reports    ReportStore
	MailSvc    core.EmailService
	Validate   *validator.Validate
	Translator ut.Translator
}

// Request is one upload.
type Request struct {
	Kind         string
	SchoolID     string
	Action       string
	ThrowInError bool // apply nothing when any row is invalid or duplicated
	WithReport   bool // render the failed rows back into a downloadable file
	Filename     string
	Data         []byte
	Uploader     *school.Admin // receives the report by email when enabled
}

// Service reconciles uploaded files with the persisted entities of a school.
type Service struct {
	conf       *core.Config
	logger     core.Logger
	repos      school.Repositories
	reports    ReportStore
	mailSvc    core.EmailService
	resolver   *Resolver
	normalizer normalizer
}

func NewService(deps Deps) (*Service, error) {
	resolver, err := NewResolver(deps.Conf.Import.HeaderToken, deps.Conf.Import.Scripts, deps.Conf.Import.FallbackEncodings)
	if err != nil {
		return nil, errors.Wrap(err, "setting up encoding resolver")
	}
	return &Service{
		conf:       deps.Conf,
		logger:     deps.Logger,
		repos:      deps.Repos,
		reports:    deps.Reports,
		mailSvc:    deps.MailSvc,
		resolver:   resolver,
		normalizer: normalizer{validate: deps.Validate, translator: deps.Translator},
	}, nil
}

// Import runs the upload through decoding, parsing, validation, deduplication and reconciliation.
//
// Batch errors (ErrUnknownKind, ErrUnknownAction, ErrMalformedUpload, ErrDecodingFailure, ErrAllRowsInvalid)
// are returned wrapped in a core.ValidationError, before anything is written.
// Rows are applied one by one without a surrounding transaction: when a write fails, the rows applied
// before it stay applied and the error is returned.
func (svc *Service) Import(ctx context.Context, req Request) (*Result, error) {
	kind, err := LookupKind(req.Kind)
	if err != nil {
		return nil, err
	}
	act, err := parseAction(req.Action)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(req.Data)) == 0 {
		return nil, core.NewValidationError(ErrMalformedUpload)
	}

	text, enc, err := svc.resolver.Decode(req.Data)
	if err != nil {
		return nil, core.NewValidationError(err)
	}
	raws, err := Parse(text)
	if err != nil {
		return nil, err
	}

	rows := make([]*BatchRow, 0, len(raws))
	for _, raw := range raws {
		rows = append(rows, svc.normalizer.normalize(kind, raw))
	}
	dedup(rows, kind.DedupKeys)

	res := newResult(kind, act, enc)
	eligible := make([]*NormalizedRow, 0, len(rows))
	for _, row := range rows {
		if row.valid() {
			eligible = append(eligible, row.Normalized)
		}
	}

	if req.ThrowInError && len(eligible) < len(rows) {
		res.Status = StatusAborted
		res.collect(rows)
		return svc.finish(ctx, kind, req, res)
	}
	if len(eligible) == 0 {
		return nil, core.NewValidationError(ErrAllRowsInvalid)
	}

	rec := kind.newReconciler(reconcilerDeps{
		repos:                svc.repos,
		schoolID:             req.SchoolID,
		maxParentsPerStudent: svc.conf.Import.MaxParentsPerStudent,
	})
	if err = rec.load(ctx, eligible); err != nil {
		return nil, errors.Wrap(err, "loading existing "+kind.Name+"s")
	}
	for _, row := range rows {
		if !row.valid() {
			continue
		}
		if err = svc.apply(ctx, kind, rec, act, row); err != nil {
			return nil, errors.Wrapf(err, "applying line %d", row.Raw.Line)
		}
	}

	res.collect(rows)
	return svc.finish(ctx, kind, req, res)
}

func (svc *Service) apply(ctx context.Context, kind *Kind, rec reconciler, act Action, row *BatchRow) error {
	norm := row.Normalized
	exists := rec.exists(norm)

	var (
		relErrs FieldErrorSet
		err     error
	)
	switch act {
	case ActionCreate:
		if exists {
			row.reject(ReasonExists, FieldErrorSet{kind.MatchKey: msgExists})
			return nil
		}
		relErrs, err = rec.create(ctx, norm)
	case ActionUpdate:
		if !exists {
			row.reject(ReasonNotFound, FieldErrorSet{kind.MatchKey: msgNotFound})
			return nil
		}
		relErrs, err = rec.update(ctx, norm)
	case ActionDelete:
		if !exists {
			row.reject(ReasonNotFound, FieldErrorSet{kind.MatchKey: msgNotFound})
			return nil
		}
		err = rec.delete(ctx, norm)
	}

	switch {
	case errors.Cause(err) == school.ErrDuplicate: // lost a race with another writer
		row.reject(ReasonExists, FieldErrorSet{kind.MatchKey: msgExists})
	case err != nil:
		return err
	case len(relErrs) > 0:
		row.reject(ReasonInvalidRelation, relErrs)
	default:
		row.applied = act
	}
	return nil
}

// finish renders, stores and mails the error report when requested.
func (svc *Service) finish(ctx context.Context, kind *Kind, req Request, res *Result) (*Result, error) {
	svc.logger.Info(fmt.Sprintf(
		"import %s %s: school %s, status %s, inserted %d, updated %d, deleted %d, errors %d",
		kind.Name, res.Action, req.SchoolID, res.Status, len(res.Inserted), len(res.Updated), len(res.Deleted), len(res.Errors),
	))
	if !req.WithReport || len(res.Errors) == 0 {
		return res, nil
	}

	content, err := renderReport(kind, res.Errors)
	if err != nil {
		return nil, errors.Wrap(err, "rendering report")
	}
	res.Report = content

	if svc.reports != nil {
		now := school.NowFunc()
		rep, err := svc.reports.SaveReport(ctx, Report{
			SchoolID:  req.SchoolID,
			Kind:      kind.Name,
			Filename:  reportFilename(kind, req.Filename),
			Content:   content,
			CreatedAt: now,
			ExpiresAt: now.Add(svc.conf.Import.ReportTTL),
		})
		if err != nil {
			return nil, errors.Wrap(err, "saving report")
		}
		res.ReportID = rep.ID
	}

	if svc.conf.Import.EmailReports && req.Uploader != nil && svc.mailSvc != nil {
		if err = svc.mailReport(*req.Uploader, kind, req, res); err != nil {
			svc.logger.Error(err.Error(), err, *req.Uploader)
		}
	}
	return res, nil
}

// Export renders every entity of kind in the school, in the upload column order.
func (svc *Service) Export(ctx context.Context, kindName, schoolID string) ([]byte, error) {
	kind, err := LookupKind(kindName)
	if err != nil {
		return nil, err
	}
	records, err := kind.export(ctx, svc.repos, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "exporting "+kind.Name+"s")
	}

	var buf bytes.Buffer
	if err = WriteCSV(&buf, kind.Columns, records); err != nil {
		return nil, errors.Wrap(err, "rendering export")
	}
	return buf.Bytes(), nil
}

// GetReport returns a stored report of the school.
func (svc *Service) GetReport(ctx context.Context, schoolID, id string) (Report, error) {
	if svc.reports == nil {
		return Report{}, school.ErrNotFound
	}
	return svc.reports.GetReport(ctx, schoolID, id)
}
