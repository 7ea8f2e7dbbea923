package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/roster/apps/api/echo"
	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
	emailsvc "github.com/trezcool/roster/services/email"
	inmemdb "github.com/trezcool/roster/storage/database/inmem"
	"github.com/trezcool/roster/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// setup returns a server over a fresh in-memory environment. configure adjusts the config before the server is built.
func setup(t *testing.T, configure ...func(conf *core.Config)) (*Server, *testutil.Env) {
	t.Helper()
	env := testutil.Setup(t)
	for _, fn := range configure {
		fn(env.Conf)
	}

	mailSvc := emailsvc.NewConsoleServiceMock(env.Conf)
	schoolSvc := school.NewService(env.Repos, env.Validate, env.Translator)
	importSvc, err := importer.NewService(importer.Deps{
		Conf:       env.Conf,
		Logger:     env.Logger,
		Repos:      env.Repos,
		Reports:    inmemdb.NewReportStore(env.DB),
		MailSvc:    mailSvc,
		Validate:   env.Validate,
		Translator: env.Translator,
	})
	require.NoError(t, err)

	server := NewServer(ServerDeps{
		Conf:       env.Conf,
		Logger:     env.Logger,
		SchoolSvc:  schoolSvc,
		ImportSvc:  importSvc,
		Validate:   env.Validate,
		Translator: env.Translator,
	})
	return server, env
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart import request. A nil content sends no file part.
func newUploadRequest(t *testing.T, path, token string, fields map[string]string, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if content != nil {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, env *testutil.Env, adm school.Admin) string {
	token, err := GenerateToken(GetAdminClaims(adm, env.Conf), env.Conf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// importResponse mirrors the JSON body of an import.
type importResponse struct {
	Kind      string              `json:"kind"`
	Action    string              `json:"action"`
	Status    string              `json:"status"`
	Encoding  string              `json:"encoding"`
	Inserted  []map[string]string `json:"inserted"`
	Updated   []map[string]string `json:"updated"`
	Deleted   []map[string]string `json:"deleted"`
	Errors    []rowError          `json:"errors"`
	ReportID  string              `json:"report_id"`
	ReportURL string              `json:"report_url"`
}

type rowError struct {
	Line   int               `json:"line"`
	Row    map[string]string `json:"row"`
	Errors map[string]string `json:"errors"`
	Reason string            `json:"reason"`
}

func decodeImport(t *testing.T, rec *httptest.ResponseRecorder) importResponse {
	t.Helper()
	var resp importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}
