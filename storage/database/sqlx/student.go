package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/roster/core/school"
)

const studentColumns = `id, school_id, student_number, email, phone_number, given_name, family_name, created_at, updated_at`

type studentRow struct {
	ID            string    `db:"id"`
	SchoolID      string    `db:"school_id"`
	StudentNumber string    `db:"student_number"`
	Email         string    `db:"email"`
	PhoneNumber   string    `db:"phone_number"`
	GivenName     string    `db:"given_name"`
	FamilyName    string    `db:"family_name"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r studentRow) student() school.Student {
	return school.Student{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		StudentNumber: r.StudentNumber,
		Email:         r.Email,
		PhoneNumber:   r.PhoneNumber,
		GivenName:     r.GivenName,
		FamilyName:    r.FamilyName,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type studentRepository struct {
	db sqlx.ExtContext
}

var _ school.StudentRepository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db sqlx.ExtContext) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) selectStudents(ctx context.Context, q string, args ...interface{}) ([]school.Student, error) {
	var rows []studentRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, trapErr(err, "selecting students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo studentRepository) FindStudents(ctx context.Context, schoolID string, numbers []string) ([]school.Student, error) {
	if len(numbers) == 0 {
		return []school.Student{}, nil
	}
	q, args, err := in(repo.db, `SELECT `+studentColumns+` FROM student WHERE school_id = ? AND student_number IN (?)`, schoolID, numbers)
	if err != nil {
		return nil, err
	}
	return repo.selectStudents(ctx, q, args...)
}

func (repo studentRepository) QueryStudents(ctx context.Context, schoolID string) ([]school.Student, error) {
	q := `SELECT ` + studentColumns + ` FROM student WHERE school_id = $1 ORDER BY created_at, student_number`
	return repo.selectStudents(ctx, q, schoolID)
}

func (repo studentRepository) CreateStudent(ctx context.Context, std school.Student) (school.Student, error) {
	std.ID = uuid.New().String()
	q := `INSERT INTO student (` + studentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, q,
		std.ID, std.SchoolID, std.StudentNumber, std.Email, std.PhoneNumber, std.GivenName, std.FamilyName,
		std.CreatedAt.UTC(), std.UpdatedAt.UTC(),
	)
	if err != nil {
		return school.Student{}, trapErr(err, "inserting student")
	}
	return std, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std school.Student) (school.Student, error) {
	q := `UPDATE student SET
		student_number = $2, email = $3, phone_number = $4, given_name = $5, family_name = $6, updated_at = $7
	WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		std.ID, std.StudentNumber, std.Email, std.PhoneNumber, std.GivenName, std.FamilyName, std.UpdatedAt.UTC(),
	)
	if err != nil {
		return school.Student{}, trapErr(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Student{}, school.ErrNotFound
	}
	return std, nil
}

// DeleteStudent relies on the ON DELETE CASCADE of parent_student to drop the links.
func (repo studentRepository) DeleteStudent(ctx context.Context, schoolID, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM student WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return trapErr(err, "deleting student")
	}
	return nil
}
