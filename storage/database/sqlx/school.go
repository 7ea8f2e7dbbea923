package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/roster/core/school"
)

type schoolRepository struct {
	db sqlx.ExtContext
}

var _ school.SchoolRepository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db sqlx.ExtContext) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	q := `INSERT INTO school (id, name, created_at) VALUES ($1, $2, $3)`
	if _, err := repo.db.ExecContext(ctx, q, sch.ID, sch.Name, sch.CreatedAt.UTC()); err != nil {
		return school.School{}, trapErr(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.School{}, school.ErrNotFound
	}
	var sch school.School
	row := repo.db.QueryRowxContext(ctx, `SELECT id, name, created_at FROM school WHERE id = $1`, id)
	if err := row.Scan(&sch.ID, &sch.Name, &sch.CreatedAt); err != nil {
		return school.School{}, trapErr(err, "selecting school")
	}
	return sch, nil
}
