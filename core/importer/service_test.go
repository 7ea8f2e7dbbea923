package importer_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
	emailsvc "github.com/trezcool/roster/services/email"
	inmemdb "github.com/trezcool/roster/storage/database/inmem"
	testutil "github.com/trezcool/roster/tests"
)

const (
	studentsHeader = "email,phone_number,given_name,family_name,student_number"
	parentsHeader  = "email,phone_number,given_name,family_name,student_numbers"
	adminsHeader   = "email,phone_number,given_name,family_name"
)

var ctx = context.Background()

type fixture struct {
	env *testutil.Env
	svc *importer.Service
	sch school.School
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutil.Setup(t)
	core.ParseEmailTemplates(env.Conf, env.Logger)
	emailsvc.ClearSentMessages()

	f := &fixture{env: env, sch: testutil.CreateSchool(t, env.Repos, "Hogwarts")}
	f.svc = f.newService(t, env.Repos)
	return f
}

func (f *fixture) newService(t *testing.T, repos school.Repositories) *importer.Service {
	t.Helper()
	svc, err := importer.NewService(importer.Deps{
		Conf:       f.env.Conf,
		Logger:     f.env.Logger,
		Repos:      repos,
		Reports:    inmemdb.NewReportStore(f.env.DB),
		MailSvc:    emailsvc.NewConsoleServiceMock(f.env.Conf),
		Validate:   f.env.Validate,
		Translator: f.env.Translator,
	})
	require.NoError(t, err)
	return svc
}

func (f *fixture) request(kind, action string, csvLines ...string) importer.Request {
	return importer.Request{
		Kind:     kind,
		SchoolID: f.sch.ID,
		Action:   action,
		Filename: kind + "s.csv",
		Data:     []byte(strings.Join(csvLines, "\n") + "\n"),
	}
}

func (f *fixture) students(t *testing.T) map[string]school.Student {
	t.Helper()
	students, err := f.env.Repos.Students.QueryStudents(ctx, f.sch.ID)
	require.NoError(t, err)
	byNumber := make(map[string]school.Student, len(students))
	for _, std := range students {
		byNumber[std.StudentNumber] = std
	}
	return byNumber
}

func (f *fixture) parent(t *testing.T, email string) (school.Parent, bool) {
	t.Helper()
	parents, err := f.env.Repos.Parents.FindParents(ctx, f.sch.ID, []string{email})
	require.NoError(t, err)
	if len(parents) == 0 {
		return school.Parent{}, false
	}
	return parents[0], true
}

func lines(rows []importer.RawRow) []int {
	nums := make([]int, 0, len(rows))
	for _, r := range rows {
		nums = append(nums, r.Line)
	}
	return nums
}

type rowErr struct {
	line   int
	reason importer.Reason
	errors importer.FieldErrorSet
}

func rowErrs(res *importer.Result) []rowErr {
	errs := make([]rowErr, 0, len(res.Errors))
	for _, re := range res.Errors {
		errs = append(errs, rowErr{line: re.Line, reason: re.Reason, errors: re.Errors})
	}
	return errs
}

// assertPartition checks that every row of the upload is listed exactly once.
func assertPartition(t *testing.T, res *importer.Result, rowCount int) {
	t.Helper()
	all := append(lines(res.Inserted), lines(res.Updated)...)
	all = append(all, lines(res.Deleted)...)
	for _, re := range res.Errors {
		all = append(all, re.Line)
	}
	seen := make(map[int]bool, len(all))
	for _, l := range all {
		assert.False(t, seen[l], "line %d listed twice", l)
		seen[l] = true
	}
	assert.Len(t, seen, rowCount)
}

func TestImport_batchErrors(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		req  importer.Request
		want error
	}{
		{
			name: "unknown kind",
			req:  f.request("guardian", "create", studentsHeader),
			want: importer.ErrUnknownKind,
		},
		{
			name: "unknown action before missing file",
			req:  importer.Request{Kind: "student", SchoolID: f.sch.ID, Action: "upsert"},
			want: importer.ErrUnknownAction,
		},
		{
			name: "missing file",
			req:  importer.Request{Kind: "student", SchoolID: f.sch.ID, Action: "create"},
			want: importer.ErrMalformedUpload,
		},
		{
			name: "blank file",
			req:  importer.Request{Kind: "student", SchoolID: f.sch.ID, Action: "create", Data: []byte(" \n\n")},
			want: importer.ErrMalformedUpload,
		},
		{
			name: "no localized text",
			req:  f.request("student", "create", studentsHeader, "harry@hogwarts.edu,0123456789,Harry,Potter,S1"),
			want: importer.ErrDecodingFailure,
		},
		{
			name: "all rows invalid",
			req: f.request("student", "create", studentsHeader,
				"harry,0123456789,ハリー,ポッター,S1",
				"ron@hogwarts.edu,,ロン,ウィーズリー,S2",
			),
			want: importer.ErrAllRowsInvalid,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.svc.Import(ctx, tc.req)
			assert.Nil(t, res)
			assert.True(t, core.IsValidationError(err, tc.want), "got %v", err)
		})
	}
	assert.Empty(t, f.students(t))
}

func TestImport_students(t *testing.T) {
	f := setup(t)
	req := f.request("students", "create", studentsHeader,
		"Harry@Hogwarts.edu, 0123456789 ,ハリー,ポッター,S1",
		"ron@hogwarts.edu,0123456780,ロン,ウィーズリー,S2",
		"bad-email,,ジニー,ウィーズリー,S3",
		"fred@hogwarts.edu,0123456781,フレッド,ウィーズリー,S1",
	)

	res, err := f.svc.Import(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "student", res.Kind)
	assert.Equal(t, importer.ActionCreate, res.Action)
	assert.Equal(t, importer.StatusPartial, res.Status)
	assert.Equal(t, "UTF-8", res.Encoding)
	assert.Equal(t, []int{2, 3}, lines(res.Inserted))
	assert.Equal(t, []rowErr{
		{4, importer.ReasonInvalid, importer.FieldErrorSet{"email": "enter a valid email address", "phone_number": "this field is required"}},
		{5, importer.ReasonDuplicate, importer.FieldErrorSet{"student_number": "duplicate within upload"}},
	}, rowErrs(res))
	assertPartition(t, res, 4)
	assert.Empty(t, res.ReportID)
	assert.Nil(t, res.Report)

	students := f.students(t)
	require.Len(t, students, 2)
	assert.Equal(t, "harry@hogwarts.edu", students["S1"].Email)
	assert.Equal(t, "123456789", students["S1"].PhoneNumber)
	assert.Equal(t, "ハリー", students["S1"].GivenName)
	assert.Equal(t, "ウィーズリー", students["S2"].FamilyName)

	t.Run("reimporting is idempotent", func(t *testing.T) {
		res, err := f.svc.Import(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, importer.StatusPartial, res.Status)
		assert.Empty(t, res.Inserted)
		assert.Equal(t, []rowErr{
			{2, importer.ReasonExists, importer.FieldErrorSet{"student_number": "already exists"}},
			{3, importer.ReasonExists, importer.FieldErrorSet{"student_number": "already exists"}},
			{4, importer.ReasonInvalid, importer.FieldErrorSet{"email": "enter a valid email address", "phone_number": "this field is required"}},
			{5, importer.ReasonDuplicate, importer.FieldErrorSet{"student_number": "duplicate within upload"}},
		}, rowErrs(res))
		assertPartition(t, res, 4)
		assert.Len(t, f.students(t), 2)
	})

	t.Run("throw in error", func(t *testing.T) {
		req := f.request("student", "create", studentsHeader,
			"neville@hogwarts.edu,0123456782,ネビル,ロングボトム,S4",
			"luna@hogwarts.edu,abc,ルーナ,ラブグッド,S5",
		)
		req.ThrowInError = true

		res, err := f.svc.Import(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, importer.StatusAborted, res.Status)
		assert.Empty(t, res.Inserted)
		assert.Equal(t, []rowErr{
			{3, importer.ReasonInvalid, importer.FieldErrorSet{"phone_number": "only digits are allowed"}},
		}, rowErrs(res))
		assert.Len(t, f.students(t), 2)
	})
}

func TestImport_updateAndDeleteStudents(t *testing.T) {
	f := setup(t)
	s1 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S1", "harry@hogwarts.edu")
	testutil.CreateParent(t, f.env.Repos, f.sch.ID, "lily@potter.me", s1.ID)

	res, err := f.svc.Import(ctx, f.request("student", "update", studentsHeader,
		"harry.potter@hogwarts.edu,0987654321,ハリー,ポッター,S1",
		"tom@hogwarts.edu,0987654322,トム,リドル,S9",
	))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, lines(res.Updated))
	assert.Equal(t, []rowErr{
		{3, importer.ReasonNotFound, importer.FieldErrorSet{"student_number": "does not exist"}},
	}, rowErrs(res))

	std := f.students(t)["S1"]
	assert.Equal(t, s1.ID, std.ID)
	assert.Equal(t, "harry.potter@hogwarts.edu", std.Email)
	assert.Equal(t, "987654321", std.PhoneNumber)
	assert.Equal(t, "ハリー", std.GivenName)
	assert.False(t, std.UpdatedAt.Before(s1.UpdatedAt))

	res, err = f.svc.Import(ctx, f.request("student", "delete", studentsHeader,
		"harry.potter@hogwarts.edu,0987654321,ハリー,ポッター,S1",
		"tom@hogwarts.edu,0987654322,トム,リドル,S9",
	))
	require.NoError(t, err)
	assert.Equal(t, importer.StatusPartial, res.Status)
	assert.Equal(t, []int{2}, lines(res.Deleted))
	assert.Len(t, res.Errors, 1)
	assert.Empty(t, f.students(t))

	par, ok := f.parent(t, "lily@potter.me")
	require.True(t, ok)
	assert.Empty(t, par.StudentIDs)
}

func TestImport_parents(t *testing.T) {
	f := setup(t)
	s1 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S1", "s1@hogwarts.edu")
	s2 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S2", "s2@hogwarts.edu")
	s3 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S3", "s3@hogwarts.edu")
	s4 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S4", "s4@hogwarts.edu")

	t.Run("create", func(t *testing.T) {
		res, err := f.svc.Import(ctx, f.request("parent", "create", parentsHeader,
			`molly@weasley.me,0123456789,モリー,ウィーズリー,"S1, S2,S3"`,
			"arthur@weasley.me,0123456780,アーサー,ウィーズリー,",
			`lucius@malfoy.me,0123456781,ルシウス,マルフォイ,"S8,S9"`,
		))
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, lines(res.Inserted))
		assert.Equal(t, []rowErr{
			{4, importer.ReasonInvalidRelation, importer.FieldErrorSet{"student_numbers": "invalid student numbers: S8, S9"}},
		}, rowErrs(res))
		assertPartition(t, res, 3)

		molly, ok := f.parent(t, "molly@weasley.me")
		require.True(t, ok)
		assert.Equal(t, []string{s1.ID, s2.ID, s3.ID}, molly.StudentIDs)

		arthur, ok := f.parent(t, "arthur@weasley.me")
		require.True(t, ok)
		assert.Empty(t, arthur.StudentIDs)

		// the parent is saved even though none of its students exist
		lucius, ok := f.parent(t, "lucius@malfoy.me")
		require.True(t, ok)
		assert.Empty(t, lucius.StudentIDs)
	})

	t.Run("update applies the link delta", func(t *testing.T) {
		res, err := f.svc.Import(ctx, f.request("parent", "update", parentsHeader,
			`molly@weasley.me,0123456789,モリー,ウィーズリー,"S2,S3,S4,S9"`,
		))
		require.NoError(t, err)
		assert.Equal(t, importer.StatusSuccess, res.Status)
		assert.Equal(t, []int{2}, lines(res.Updated))

		molly, _ := f.parent(t, "molly@weasley.me")
		assert.Equal(t, []string{s2.ID, s3.ID, s4.ID}, molly.StudentIDs)
	})

	t.Run("blank students leave links untouched", func(t *testing.T) {
		res, err := f.svc.Import(ctx, f.request("parent", "update", parentsHeader,
			"molly@weasley.me,0123456700,モリー,プルウェット,",
		))
		require.NoError(t, err)
		assert.Equal(t, []int{2}, lines(res.Updated))

		molly, _ := f.parent(t, "molly@weasley.me")
		assert.Equal(t, "プルウェット", molly.FamilyName)
		assert.Equal(t, "123456700", molly.PhoneNumber)
		assert.Equal(t, []string{s2.ID, s3.ID, s4.ID}, molly.StudentIDs)
	})

	t.Run("unknown students only", func(t *testing.T) {
		res, err := f.svc.Import(ctx, f.request("parent", "update", parentsHeader,
			"molly@weasley.me,0123456700,モリー,ウィーズリー,S9",
		))
		require.NoError(t, err)
		assert.Equal(t, []rowErr{
			{2, importer.ReasonInvalidRelation, importer.FieldErrorSet{"student_numbers": "invalid student numbers: S9"}},
		}, rowErrs(res))

		molly, _ := f.parent(t, "molly@weasley.me")
		assert.Equal(t, "ウィーズリー", molly.FamilyName)
		assert.Equal(t, []string{s2.ID, s3.ID, s4.ID}, molly.StudentIDs)
	})

	t.Run("delete", func(t *testing.T) {
		res, err := f.svc.Import(ctx, f.request("parent", "delete", parentsHeader,
			"molly@weasley.me,0123456700,モリー,ウィーズリー,",
		))
		require.NoError(t, err)
		assert.Equal(t, []int{2}, lines(res.Deleted))
		_, ok := f.parent(t, "molly@weasley.me")
		assert.False(t, ok)

		counts, err := f.env.Repos.Parents.CountParents(ctx, []string{s2.ID, s3.ID, s4.ID})
		require.NoError(t, err)
		assert.Empty(t, counts)
	})
}

func TestImport_parentCapacity(t *testing.T) {
	f := setup(t)
	f.env.Conf.Import.MaxParentsPerStudent = 1
	f.svc = f.newService(t, f.env.Repos)

	s1 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S1", "s1@hogwarts.edu")
	s2 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S2", "s2@hogwarts.edu")
	testutil.CreateParent(t, f.env.Repos, f.sch.ID, "lily@potter.me", s1.ID)

	res, err := f.svc.Import(ctx, f.request("parent", "create", parentsHeader,
		`molly@weasley.me,0123456789,モリー,ウィーズリー,"S1,S2"`,
		"arthur@weasley.me,0123456780,アーサー,ウィーズリー,S2",
	))
	require.NoError(t, err)
	assert.Equal(t, importer.StatusSuccess, res.Status)
	assert.Equal(t, []int{2, 3}, lines(res.Inserted))

	molly, _ := f.parent(t, "molly@weasley.me")
	assert.Equal(t, []string{s2.ID}, molly.StudentIDs)
	arthur, _ := f.parent(t, "arthur@weasley.me")
	assert.Empty(t, arthur.StudentIDs)

	counts, err := f.env.Repos.Parents.CountParents(ctx, []string{s1.ID, s2.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{s1.ID: 1, s2.ID: 1}, counts)
}

func TestImport_admins(t *testing.T) {
	f := setup(t)
	testutil.CreateAdmin(t, f.env.Repos, f.sch.ID, "albus@hogwarts.edu", "", true)

	res, err := f.svc.Import(ctx, f.request("admin", "create", adminsHeader,
		"minerva@hogwarts.edu,0123456789,ミネルバ,マクゴナガル",
		"albus@hogwarts.edu,0123456780,アルバス,ダンブルドア",
	))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, lines(res.Inserted))
	assert.Equal(t, []rowErr{
		{3, importer.ReasonExists, importer.FieldErrorSet{"email": "already exists"}},
	}, rowErrs(res))

	adm, err := f.env.Repos.Admins.GetAdmin(ctx, f.sch.ID, "minerva@hogwarts.edu")
	require.NoError(t, err)
	assert.True(t, adm.IsActive)
	assert.Equal(t, "ミネルバ マクゴナガル", adm.FullName())
	assert.Error(t, adm.CheckPassword(""))
}

func TestImport_report(t *testing.T) {
	f := setup(t)
	f.env.Conf.Import.EmailReports = true
	f.svc = f.newService(t, f.env.Repos)
	uploader := testutil.CreateAdmin(t, f.env.Repos, f.sch.ID, "albus@hogwarts.edu", "", true)

	req := f.request("student", "create", studentsHeader,
		"harry@hogwarts.edu,0123456789,ハリー,ポッター,S1",
		"ron@hogwarts.edu,,ロン,ウィーズリー,S2",
	)
	req.WithReport = true
	req.Uploader = &uploader

	res, err := f.svc.Import(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, importer.StatusPartial, res.Status)
	wantReport := "\uFEFF" + studentsHeader + "\nron@hogwarts.edu,,ロン,ウィーズリー,S2\n"
	assert.Equal(t, wantReport, string(res.Report))
	require.NotEmpty(t, res.ReportID)

	rep, err := f.svc.GetReport(ctx, f.sch.ID, res.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "students-errors.csv", rep.Filename)
	assert.Equal(t, "student", rep.Kind)
	assert.Equal(t, wantReport, string(rep.Content))
	assert.True(t, rep.ExpiresAt.After(rep.CreatedAt))

	_, err = f.svc.GetReport(ctx, "other-school", res.ReportID)
	assert.Equal(t, school.ErrNotFound, err)

	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, "albus@hogwarts.edu", msg.To[0].Address)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "students-errors.csv", msg.Attachments[0].Filename)
	assert.Equal(t, importer.ReportContentType, msg.Attachments[0].ContentType)
	assert.Contains(t, msg.TextContent, "students.csv")

	t.Run("no errors, no report", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		req := f.request("student", "create", studentsHeader, "ron@hogwarts.edu,0123456780,ロン,ウィーズリー,S2")
		req.WithReport = true
		req.Uploader = &uploader

		res, err := f.svc.Import(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, importer.StatusSuccess, res.Status)
		assert.Empty(t, res.ReportID)
		assert.Nil(t, res.Report)
		assert.Empty(t, emailsvc.SentMessages)
	})
}

func TestExport(t *testing.T) {
	f := setup(t)
	s1 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S1", "s1@hogwarts.edu")
	s2 := testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S2", "s2@hogwarts.edu")
	testutil.CreateParent(t, f.env.Repos, f.sch.ID, "molly@weasley.me", s2.ID, s1.ID)

	content, err := f.svc.Export(ctx, "students", f.sch.ID)
	require.NoError(t, err)
	assert.Equal(t, "\uFEFF"+studentsHeader+"\n"+
		"s1@hogwarts.edu,0123456789,Student,S1,S1\n"+
		"s2@hogwarts.edu,0123456789,Student,S2,S2\n", string(content))

	content, err = f.svc.Export(ctx, "parent", f.sch.ID)
	require.NoError(t, err)
	assert.Equal(t, "\uFEFF"+parentsHeader+"\n"+
		"molly@weasley.me,0123456789,Parent,molly@weasley.me,\"S1,S2\"\n", string(content))

	_, err = f.svc.Export(ctx, "guardians", f.sch.ID)
	assert.True(t, core.IsValidationError(err, importer.ErrUnknownKind))
}

// racyStudents hides every persisted student from lookups, as if they were created after the batch was loaded.
type racyStudents struct {
	school.StudentRepository
}

func (racyStudents) FindStudents(context.Context, string, []string) ([]school.Student, error) {
	return nil, nil
}

// failingStudents fails every creation after the first one.
type failingStudents struct {
	school.StudentRepository
	created int
}

func (repo *failingStudents) CreateStudent(ctx context.Context, std school.Student) (school.Student, error) {
	if repo.created > 0 {
		return school.Student{}, errors.New("connection reset")
	}
	repo.created++
	return repo.StudentRepository.CreateStudent(ctx, std)
}

func TestImport_writeErrors(t *testing.T) {
	t.Run("concurrent insert", func(t *testing.T) {
		f := setup(t)
		testutil.CreateStudent(t, f.env.Repos, f.sch.ID, "S1", "s1@hogwarts.edu")
		repos := f.env.Repos
		repos.Students = racyStudents{f.env.Repos.Students}
		svc := f.newService(t, repos)

		res, err := svc.Import(ctx, f.request("student", "create", studentsHeader,
			"harry@hogwarts.edu,0123456789,ハリー,ポッター,S1",
			"ron@hogwarts.edu,0123456780,ロン,ウィーズリー,S2",
		))
		require.NoError(t, err)
		assert.Equal(t, []int{3}, lines(res.Inserted))
		assert.Equal(t, []rowErr{
			{2, importer.ReasonExists, importer.FieldErrorSet{"student_number": "already exists"}},
		}, rowErrs(res))
	})

	t.Run("applied rows are not rolled back", func(t *testing.T) {
		f := setup(t)
		repos := f.env.Repos
		repos.Students = &failingStudents{StudentRepository: f.env.Repos.Students}
		svc := f.newService(t, repos)

		res, err := svc.Import(ctx, f.request("student", "create", studentsHeader,
			"harry@hogwarts.edu,0123456789,ハリー,ポッター,S1",
			"ron@hogwarts.edu,0123456780,ロン,ウィーズリー,S2",
		))
		assert.Nil(t, res)
		require.Error(t, err)
		assert.False(t, core.IsValidationError(err, nil))
		assert.Contains(t, err.Error(), "applying line 3")

		students := f.students(t)
		assert.Len(t, students, 1)
		assert.Contains(t, students, "S1")
	})
}
