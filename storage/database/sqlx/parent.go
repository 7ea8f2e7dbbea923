package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/roster/core/school"
)

const parentColumns = `id, school_id, email, phone_number, given_name, family_name, created_at, updated_at`

type parentRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	Email       string    `db:"email"`
	PhoneNumber string    `db:"phone_number"`
	GivenName   string    `db:"given_name"`
	FamilyName  string    `db:"family_name"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r parentRow) parent() school.Parent {
	return school.Parent{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		GivenName:   r.GivenName,
		FamilyName:  r.FamilyName,
		StudentIDs:  []string{},
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type linkRow struct {
	ParentID  string `db:"parent_id"`
	StudentID string `db:"student_id"`
}

type countRow struct {
	StudentID string `db:"student_id"`
	Count     int    `db:"count"`
}

type parentRepository struct {
	db sqlx.ExtContext
}

var _ school.ParentRepository = (*parentRepository)(nil) // interface compliance check

func NewParentRepository(db sqlx.ExtContext) *parentRepository {
	return &parentRepository{db: db}
}

// selectParents loads the parents, then their links in a second query.
func (repo parentRepository) selectParents(ctx context.Context, q string, args ...interface{}) ([]school.Parent, error) {
	var rows []parentRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, trapErr(err, "selecting parents")
	}
	parents := make([]school.Parent, 0, len(rows))
	if len(rows) == 0 {
		return parents, nil
	}

	ids := make([]string, 0, len(rows))
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		ids = append(ids, r.ID)
		index[r.ID] = i
		parents = append(parents, r.parent())
	}

	lq, largs, err := in(repo.db, `
		SELECT ps.parent_id, ps.student_id
		FROM parent_student ps JOIN student s ON s.id = ps.student_id
		WHERE ps.parent_id IN (?)
		ORDER BY s.created_at, s.student_number`, ids)
	if err != nil {
		return nil, err
	}
	var links []linkRow
	if err := sqlx.SelectContext(ctx, repo.db, &links, lq, largs...); err != nil {
		return nil, trapErr(err, "selecting parent links")
	}
	for _, l := range links {
		i := index[l.ParentID]
		parents[i].StudentIDs = append(parents[i].StudentIDs, l.StudentID)
	}
	return parents, nil
}

func (repo parentRepository) FindParents(ctx context.Context, schoolID string, emails []string) ([]school.Parent, error) {
	if len(emails) == 0 {
		return []school.Parent{}, nil
	}
	q, args, err := in(repo.db, `SELECT `+parentColumns+` FROM parent WHERE school_id = ? AND email IN (?)`, schoolID, emails)
	if err != nil {
		return nil, err
	}
	return repo.selectParents(ctx, q, args...)
}

func (repo parentRepository) QueryParents(ctx context.Context, schoolID string) ([]school.Parent, error) {
	q := `SELECT ` + parentColumns + ` FROM parent WHERE school_id = $1 ORDER BY created_at, email`
	return repo.selectParents(ctx, q, schoolID)
}

func (repo parentRepository) CreateParent(ctx context.Context, par school.Parent) (school.Parent, error) {
	par.ID = uuid.New().String()
	par.StudentIDs = nil
	q := `INSERT INTO parent (` + parentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		par.ID, par.SchoolID, par.Email, par.PhoneNumber, par.GivenName, par.FamilyName,
		par.CreatedAt.UTC(), par.UpdatedAt.UTC(),
	)
	if err != nil {
		return school.Parent{}, trapErr(err, "inserting parent")
	}
	return par, nil
}

// UpdateParent saves the parent's columns; links are managed with LinkStudents and UnlinkStudents.
func (repo parentRepository) UpdateParent(ctx context.Context, par school.Parent) (school.Parent, error) {
	q := `UPDATE parent SET email = $2, phone_number = $3, given_name = $4, family_name = $5, updated_at = $6 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		par.ID, par.Email, par.PhoneNumber, par.GivenName, par.FamilyName, par.UpdatedAt.UTC(),
	)
	if err != nil {
		return school.Parent{}, trapErr(err, "updating parent")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Parent{}, school.ErrNotFound
	}
	return par, nil
}

func (repo parentRepository) DeleteParent(ctx context.Context, schoolID, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM parent WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return trapErr(err, "deleting parent")
	}
	return nil
}

// LinkStudents inserts all the links in one statement; existing links are left untouched.
func (repo parentRepository) LinkStudents(ctx context.Context, parentID string, studentIDs ...string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, 2*len(studentIDs))
	for _, id := range studentIDs {
		args = append(args, parentID, id)
	}
	q := `INSERT INTO parent_student (parent_id, student_id) VALUES ` + multiValues(len(studentIDs), 2) + ` ON CONFLICT DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return trapErr(err, "linking students")
	}
	return nil
}

func (repo parentRepository) UnlinkStudents(ctx context.Context, parentID string, studentIDs ...string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	q, args, err := in(repo.db, `DELETE FROM parent_student WHERE parent_id = ? AND student_id IN (?)`, parentID, studentIDs)
	if err != nil {
		return err
	}
	if _, err := repo.db.ExecContext(ctx, q, args...); err != nil {
		return trapErr(err, "unlinking students")
	}
	return nil
}

func (repo parentRepository) CountParents(ctx context.Context, studentIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(studentIDs))
	if len(studentIDs) == 0 {
		return counts, nil
	}
	q, args, err := in(repo.db, `
		SELECT student_id, COUNT(*) AS count
		FROM parent_student
		WHERE student_id IN (?)
		GROUP BY student_id`, studentIDs)
	if err != nil {
		return nil, err
	}
	var rows []countRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, trapErr(err, "counting parents")
	}
	for _, r := range rows {
		counts[r.StudentID] = r.Count
	}
	return counts, nil
}
