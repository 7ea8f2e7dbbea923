package importer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core/school"
)

type studentReconciler struct {
	repo     school.StudentRepository
	schoolID string
	existing map[string]school.Student // by student number
}

func newStudentReconciler(deps reconcilerDeps) reconciler {
	return &studentReconciler{repo: deps.repos.Students, schoolID: deps.schoolID}
}

func (rec *studentReconciler) load(ctx context.Context, rows []*NormalizedRow) error {
	numbers := make([]string, 0, len(rows))
	for _, r := range rows {
		numbers = append(numbers, r.StudentNumber)
	}
	students, err := rec.repo.FindStudents(ctx, rec.schoolID, numbers)
	if err != nil {
		return errors.Wrap(err, "finding students")
	}
	rec.existing = make(map[string]school.Student, len(students))
	for _, std := range students {
		rec.existing[std.StudentNumber] = std
	}
	return nil
}

func (rec *studentReconciler) exists(row *NormalizedRow) bool {
	_, ok := rec.existing[row.StudentNumber]
	return ok
}

func (rec *studentReconciler) create(ctx context.Context, row *NormalizedRow) (FieldErrorSet, error) {
	now := school.NowFunc()
	std, err := rec.repo.CreateStudent(ctx, school.Student{
		SchoolID:      rec.schoolID,
		StudentNumber: row.StudentNumber,
		Email:         row.Email,
		PhoneNumber:   row.PhoneNumber,
		GivenName:     row.GivenName,
		FamilyName:    row.FamilyName,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating student")
	}
	rec.existing[std.StudentNumber] = std
	return nil, nil
}

func (rec *studentReconciler) update(ctx context.Context, row *NormalizedRow) (FieldErrorSet, error) {
	std := rec.existing[row.StudentNumber]
	std.Email = row.Email
	std.PhoneNumber = row.PhoneNumber
	std.GivenName = row.GivenName
	std.FamilyName = row.FamilyName
	std.UpdatedAt = school.NowFunc()
	std, err := rec.repo.UpdateStudent(ctx, std)
	if err != nil {
		return nil, errors.Wrap(err, "updating student")
	}
	rec.existing[std.StudentNumber] = std
	return nil, nil
}

// delete also drops the student's parent links.
func (rec *studentReconciler) delete(ctx context.Context, row *NormalizedRow) error {
	std := rec.existing[row.StudentNumber]
	if err := rec.repo.DeleteStudent(ctx, rec.schoolID, std.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	delete(rec.existing, row.StudentNumber)
	return nil
}

func exportStudents(ctx context.Context, repos school.Repositories, schoolID string) ([][]string, error) {
	students, err := repos.Students.QueryStudents(ctx, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	records := make([][]string, 0, len(students))
	for _, std := range students {
		records = append(records, []string{std.Email, std.PhoneNumber, std.GivenName, std.FamilyName, std.StudentNumber})
	}
	return records, nil
}
