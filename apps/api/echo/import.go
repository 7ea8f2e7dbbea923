package echoapi

import (
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
)

const (
	fileField         = "file"
	actionField       = "action"
	throwInErrorField = "throwInError"
	withCSVField      = "withCSV"

	msgInvalidBool      = "must be true or false"
	msgInvalidMultipart = "invalid multipart body"

	reportRoute = "report"
)

var importKinds = []*importer.Kind{importer.KindAdmin, importer.KindParent, importer.KindStudent}

type importApi struct {
	schoolSvc *school.Service
	svc       *importer.Service
}

func registerImportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := importApi{
		schoolSvc: deps.SchoolSvc,
		svc:       deps.ImportSvc,
	}
	authed := adminMiddleware(deps.SchoolSvc)

	for _, kind := range importKinds {
		kg := g.Group("/"+kind.Name+"s", jwt, authed)
		kg.POST("/import", api.importRows(kind.Name))
		kg.GET("/export", api.export(kind.Name))
	}

	rg := g.Group("/imports/reports", jwt, authed)
	rg.GET("/:id", api.report).Name = reportRoute
}

// importResponse adds the download location of the error report to the import Result.
type importResponse struct {
	*importer.Result
	ReportURL string `json:"report_url,omitempty"`
}

func (api *importApi) importRows(kind string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		adm, err := getContextAdmin(ctx, api.schoolSvc)
		if err != nil {
			return errors.Wrap(err, "getting context admin")
		}

		// first form access: it parses the multipart body
		filename, data, err := readUpload(ctx)
		if err != nil {
			return err
		}

		throwInError, err := formBool(ctx, throwInErrorField)
		if err != nil {
			return err
		}
		withCSV, err := formBool(ctx, withCSVField)
		if err != nil {
			return err
		}

		res, err := api.svc.Import(ctx.Request().Context(), importer.Request{
			Kind:         kind,
			SchoolID:     adm.SchoolID,
			Action:       ctx.FormValue(actionField),
			ThrowInError: throwInError,
			WithReport:   withCSV,
			Filename:     filename,
			Data:         data,
			Uploader:     &adm,
		})
		if err != nil {
			return err
		}

		resp := importResponse{Result: res}
		if res.ReportID != "" {
			resp.ReportURL = ctx.Echo().Reverse(reportRoute, res.ReportID)
		}
		code := http.StatusOK
		if res.Status == importer.StatusAborted {
			code = http.StatusUnprocessableEntity
		}
		return ctx.JSON(code, resp)
	}
}

func (api *importApi) export(kind string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		adm, err := getContextAdmin(ctx, api.schoolSvc)
		if err != nil {
			return errors.Wrap(err, "getting context admin")
		}
		data, err := api.svc.Export(ctx.Request().Context(), kind, adm.SchoolID)
		if err != nil {
			return err
		}
		return attachment(ctx, kind+"s.csv", data)
	}
}

func (api *importApi) report(ctx echo.Context) error {
	adm, err := getContextAdmin(ctx, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "getting context admin")
	}
	rep, err := api.svc.GetReport(ctx.Request().Context(), adm.SchoolID, ctx.Param("id"))
	if err != nil {
		if err == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting report")
	}
	return attachment(ctx, rep.Filename, rep.Content)
}

// readUpload returns the uploaded file. A missing file gives no data: the importer rejects it after checking the action.
func readUpload(ctx echo.Context) (string, []byte, error) {
	fh, err := ctx.FormFile(fileField)
	switch {
	case err == http.ErrMissingFile || err == http.ErrNotMultipart:
		return "", nil, nil
	case err != nil:
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) { // e.g. body over the size limit
			return "", nil, httpErr
		}
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, msgInvalidMultipart).SetInternal(err)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return "", nil, errors.Wrap(err, "reading uploaded file")
	}
	return fh.Filename, data, nil
}

func attachment(ctx echo.Context, filename string, data []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(filename))
	return ctx.Blob(http.StatusOK, importer.ReportContentType, data)
}

// formBool parses an optional boolean form value; missing means false.
func formBool(ctx echo.Context, name string) (bool, error) {
	val := ctx.FormValue(name)
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, core.NewFieldsError(map[string]string{name: msgInvalidBool})
	}
	return b, nil
}
