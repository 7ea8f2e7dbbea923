package inmemdb

import (
	"context"

	"github.com/trezcool/roster/core/school"
)

type parentRepository struct {
	db *DB
}

var _ school.ParentRepository = (*parentRepository)(nil)

func NewParentRepository(db *DB) *parentRepository {
	return &parentRepository{db: db}
}

// query returns the parents of the school with their StudentIDs loaded.
func (repo *parentRepository) query(schoolID string, keep func(school.Parent) bool) []school.Parent {
	parents := make([]school.Parent, 0)
	for _, r := range sorted(repo.db.parents) {
		par := r.value.(school.Parent)
		if par.SchoolID == schoolID && (keep == nil || keep(par)) {
			par.StudentIDs = repo.studentIDs(par.ID)
			parents = append(parents, par)
		}
	}
	return parents
}

// studentIDs returns the linked students in student insertion order.
func (repo *parentRepository) studentIDs(parentID string) []string {
	ids := make([]string, 0)
	for _, r := range sorted(repo.db.students) {
		std := r.value.(school.Student)
		if repo.db.links[link{parentID: parentID, studentID: std.ID}] {
			ids = append(ids, std.ID)
		}
	}
	return ids
}

func (repo *parentRepository) FindParents(_ context.Context, schoolID string, emails []string) ([]school.Parent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	set := stringSet(emails)
	return repo.query(schoolID, func(par school.Parent) bool { return set[par.Email] }), nil
}

func (repo *parentRepository) QueryParents(_ context.Context, schoolID string) ([]school.Parent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(schoolID, nil), nil
}

func (repo *parentRepository) CreateParent(_ context.Context, par school.Parent) (school.Parent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[par.SchoolID]; !ok {
		return school.Parent{}, school.ErrNotFound
	}
	if len(repo.query(par.SchoolID, func(p school.Parent) bool { return p.Email == par.Email })) > 0 {
		return school.Parent{}, school.ErrDuplicate
	}
	par.StudentIDs = nil
	par.ID = repo.db.insert(repo.db.parents, nil)
	repo.db.parents[par.ID].value = par
	return par, nil
}

// UpdateParent saves the parent's columns; links are managed with LinkStudents and UnlinkStudents.
func (repo *parentRepository) UpdateParent(_ context.Context, par school.Parent) (school.Parent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.parents[par.ID]
	if !ok {
		return school.Parent{}, school.ErrNotFound
	}
	dup := repo.query(par.SchoolID, func(p school.Parent) bool { return p.Email == par.Email && p.ID != par.ID })
	if len(dup) > 0 {
		return school.Parent{}, school.ErrDuplicate
	}
	par.StudentIDs = nil
	r.value = par
	par.StudentIDs = repo.studentIDs(par.ID)
	return par, nil
}

func (repo *parentRepository) DeleteParent(_ context.Context, schoolID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.parents[id]
	if !ok || r.value.(school.Parent).SchoolID != schoolID {
		return nil
	}
	delete(repo.db.parents, id)
	for l := range repo.db.links {
		if l.parentID == id {
			delete(repo.db.links, l)
		}
	}
	return nil
}

func (repo *parentRepository) LinkStudents(_ context.Context, parentID string, studentIDs ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.parents[parentID]; !ok {
		return school.ErrNotFound
	}
	for _, id := range studentIDs {
		if _, ok := repo.db.students[id]; !ok {
			return school.ErrNotFound
		}
	}
	for _, id := range studentIDs {
		repo.db.links[link{parentID: parentID, studentID: id}] = true
	}
	return nil
}

func (repo *parentRepository) UnlinkStudents(_ context.Context, parentID string, studentIDs ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range studentIDs {
		delete(repo.db.links, link{parentID: parentID, studentID: id})
	}
	return nil
}

func (repo *parentRepository) CountParents(_ context.Context, studentIDs []string) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	set := stringSet(studentIDs)
	counts := make(map[string]int, len(studentIDs))
	for l := range repo.db.links {
		if set[l.studentID] {
			counts[l.studentID]++
		}
	}
	return counts, nil
}
