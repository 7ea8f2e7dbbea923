package tests

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/tests"
)

const (
	bom           = "\uFEFF"
	studentHeader = "email,phone_number,given_name,family_name,student_number"
)

func studentsCSV(lines ...string) []byte {
	return []byte(studentHeader + "\n" + strings.Join(lines, "\n") + "\n")
}

func Test_importApi_importRows(t *testing.T) {
	app, env := setup(t)
	sch := testutil.CreateSchool(t, env.Repos, "Hogwarts")
	adm := testutil.CreateAdmin(t, env.Repos, sch.ID, "minerva@hogwarts.edu", "Transf1gur@tion", true)
	token := getToken(t, env, adm)

	valid := "harry@hogwarts.edu,0123,ハリー,Potter,S1"
	invalid := "not-an-email,0456,ロン,Weasley,S2"

	t.Run("batch errors", func(t *testing.T) {
		tests := []struct {
			name     string
			fields   map[string]string
			content  []byte
			wantCode int
			wantData []byte
		}{
			{
				name:     "unknown action",
				fields:   map[string]string{"action": "upsert"},
				content:  studentsCSV(valid),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Error: "unknown action: expected one of create, update, delete"}),
			},
			{
				name:     "missing file",
				fields:   map[string]string{"action": "create"},
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Error: "missing, empty or malformed file"}),
			},
			{
				name:     "undecodable file",
				fields:   map[string]string{"action": "create"},
				content:  []byte("name,phone\nHarry,0123\n"),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Error: "unable to detect the file encoding"}),
			},
			{
				name:     "all rows invalid",
				fields:   map[string]string{"action": "create"},
				content:  studentsCSV(invalid),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Error: "all data invalid: no row can be imported"}),
			},
			{
				name:     "invalid flag",
				fields:   map[string]string{"action": "create", "throwInError": "maybe"},
				content:  studentsCSV(valid),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"throwInError": "must be true or false"}),
			},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				req, rec := newUploadRequest(t, "/v1/students/import", token, tc.fields, "students.csv", tc.content)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, httpTest{wantCode: tc.wantCode, wantData: tc.wantData}, rec)
			})
		}
	})

	t.Run("missing token", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/students/import", "", map[string]string{"action": "create"}, "students.csv", studentsCSV(valid))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("aborted", func(t *testing.T) {
		fields := map[string]string{"action": "create", "throwInError": "true"}
		req, rec := newUploadRequest(t, "/v1/students/import", token, fields, "students.csv", studentsCSV(valid, invalid))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

		resp := decodeImport(t, rec)
		assert.Equal(t, "aborted", resp.Status)
		assert.Empty(t, resp.Inserted)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, 3, resp.Errors[0].Line)

		students, err := env.Repos.Students.QueryStudents(req.Context(), sch.ID)
		require.NoError(t, err)
		assert.Empty(t, students)
	})

	t.Run("partial with report", func(t *testing.T) {
		fields := map[string]string{"action": "CREATE", "withCSV": "true"}
		req, rec := newUploadRequest(t, "/v1/students/import", token, fields, "students.csv", studentsCSV(valid, invalid))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeImport(t, rec)
		assert.Equal(t, "student", resp.Kind)
		assert.Equal(t, "create", resp.Action)
		assert.Equal(t, "partial", resp.Status)
		assert.Equal(t, "UTF-8", resp.Encoding)
		require.Len(t, resp.Inserted, 1)
		assert.Equal(t, "harry@hogwarts.edu", resp.Inserted[0]["email"])
		assert.Equal(t, "0123", resp.Inserted[0]["phone_number"])
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, rowError{
			Line:   3,
			Row:    map[string]string{"email": "not-an-email", "phone_number": "0456", "given_name": "ロン", "family_name": "Weasley", "student_number": "S2"},
			Errors: map[string]string{"email": "enter a valid email address"},
			Reason: "invalid",
		}, resp.Errors[0])
		require.NotEmpty(t, resp.ReportID)
		assert.Equal(t, "/v1/imports/reports/"+resp.ReportID, resp.ReportURL)

		req, rec = newAuthRequest(http.MethodGet, resp.ReportURL, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="students-errors.csv"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, bom+studentHeader+"\nnot-an-email,0456,ロン,Weasley,S2\n", rec.Body.String())
	})

	t.Run("already exists", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/students/import", token, map[string]string{"action": "create"}, "students.csv", studentsCSV(valid))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeImport(t, rec)
		assert.Equal(t, "partial", resp.Status)
		assert.Empty(t, resp.Inserted)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "exists", resp.Errors[0].Reason)
		assert.Equal(t, map[string]string{"student_number": "already exists"}, resp.Errors[0].Errors)
		assert.Empty(t, resp.ReportID)
	})
}

func Test_importApi_importRows_body(t *testing.T) {
	app, env := setup(t, func(conf *core.Config) {
		conf.Import.MaxUploadSize = "1K"
	})
	sch := testutil.CreateSchool(t, env.Repos, "Hogwarts")
	adm := testutil.CreateAdmin(t, env.Repos, sch.ID, "minerva@hogwarts.edu", "Transf1gur@tion", true)
	token := getToken(t, env, adm)

	t.Run("over the size limit", func(t *testing.T) {
		lines := make([]string, 200)
		for i := range lines {
			lines[i] = fmt.Sprintf("student%03d@hogwarts.edu,0123,ハリー,Potter,S%03d", i, i)
		}
		req, rec := newUploadRequest(t, "/v1/students/import", token, map[string]string{"action": "create"}, "students.csv", studentsCSV(lines...))
		req.ContentLength = -1 // chunked: the limit is hit while reading the file
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusRequestEntityTooLarge,
			wantData: marchallObj(t, httpErr{Error: http.StatusText(http.StatusRequestEntityTooLarge)}),
		}, rec)

		students, err := env.Repos.Students.QueryStudents(req.Context(), sch.ID)
		require.NoError(t, err)
		assert.Empty(t, students)
	})

	t.Run("malformed multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/students/import", strings.NewReader("action=create\n"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid multipart body"}),
		}, rec)
	})
}

func Test_importApi_export(t *testing.T) {
	app, env := setup(t)
	sch := testutil.CreateSchool(t, env.Repos, "Hogwarts")
	adm := testutil.CreateAdmin(t, env.Repos, sch.ID, "minerva@hogwarts.edu", "Transf1gur@tion", true)
	s1 := testutil.CreateStudent(t, env.Repos, sch.ID, "S1", "harry@hogwarts.edu")
	s2 := testutil.CreateStudent(t, env.Repos, sch.ID, "S2", "ginny@hogwarts.edu")
	testutil.CreateParent(t, env.Repos, sch.ID, "molly@weasley.com", s2.ID, s1.ID)
	token := getToken(t, env, adm)

	req, rec := newAuthRequest(http.MethodGet, "/v1/parents/export", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="parents.csv"`, rec.Header().Get("Content-Disposition"))
	want := bom + "email,phone_number,given_name,family_name,student_numbers\n" +
		"molly@weasley.com,0123456789,Parent,molly@weasley.com,\"S1,S2\"\n"
	assert.Equal(t, want, rec.Body.String())
}

func Test_importApi_report(t *testing.T) {
	app, env := setup(t)
	hogwarts := testutil.CreateSchool(t, env.Repos, "Hogwarts")
	beauxbatons := testutil.CreateSchool(t, env.Repos, "Beauxbatons")
	minerva := testutil.CreateAdmin(t, env.Repos, hogwarts.ID, "minerva@hogwarts.edu", "Transf1gur@tion", true)
	olympe := testutil.CreateAdmin(t, env.Repos, beauxbatons.ID, "olympe@beauxbatons.fr", "Tr1wiz@rd", true)

	fields := map[string]string{"action": "create", "withCSV": "1"}
	content := studentsCSV("harry@hogwarts.edu,0123,ハリー,Potter,S1", "harry@hogwarts.edu,0456,ハリー,Potter,S9")
	req, rec := newUploadRequest(t, "/v1/students/import", getToken(t, env, minerva), fields, "students.csv", content)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeImport(t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "duplicate", resp.Errors[0].Reason)

	notFound := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}

	t.Run("other school", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, resp.ReportURL, getToken(t, env, olympe))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, notFound, rec)
	})

	t.Run("unknown", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/imports/reports/lol", getToken(t, env, minerva))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, notFound, rec)
	})
}
