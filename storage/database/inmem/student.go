package inmemdb

import (
	"context"

	"github.com/trezcool/roster/core/school"
)

type studentRepository struct {
	db *DB
}

var _ school.StudentRepository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) query(schoolID string, keep func(school.Student) bool) []school.Student {
	students := make([]school.Student, 0)
	for _, r := range sorted(repo.db.students) {
		std := r.value.(school.Student)
		if std.SchoolID == schoolID && (keep == nil || keep(std)) {
			students = append(students, std)
		}
	}
	return students
}

func (repo *studentRepository) FindStudents(_ context.Context, schoolID string, numbers []string) ([]school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	set := stringSet(numbers)
	return repo.query(schoolID, func(std school.Student) bool { return set[std.StudentNumber] }), nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, schoolID string) ([]school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(schoolID, nil), nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, std school.Student) (school.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[std.SchoolID]; !ok {
		return school.Student{}, school.ErrNotFound
	}
	if len(repo.query(std.SchoolID, func(s school.Student) bool { return s.StudentNumber == std.StudentNumber })) > 0 {
		return school.Student{}, school.ErrDuplicate
	}
	std.ID = repo.db.insert(repo.db.students, nil)
	repo.db.students[std.ID].value = std
	return std, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, std school.Student) (school.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.students[std.ID]
	if !ok {
		return school.Student{}, school.ErrNotFound
	}
	dup := repo.query(std.SchoolID, func(s school.Student) bool { return s.StudentNumber == std.StudentNumber && s.ID != std.ID })
	if len(dup) > 0 {
		return school.Student{}, school.ErrDuplicate
	}
	r.value = std
	return std, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, schoolID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.students[id]
	if !ok || r.value.(school.Student).SchoolID != schoolID {
		return nil
	}
	delete(repo.db.students, id)
	for l := range repo.db.links {
		if l.studentID == id {
			delete(repo.db.links, l)
		}
	}
	return nil
}
