package inmemdb

import (
	"context"

	"github.com/trezcool/roster/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.SchoolRepository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sch.ID = repo.db.insert(repo.db.schools, nil)
	repo.db.schools[sch.ID].value = sch
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.schools[id]; ok {
		return r.value.(school.School), nil
	}
	return school.School{}, school.ErrNotFound
}
