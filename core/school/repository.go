package school

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type SchoolRepository interface {
	CreateSchool(ctx context.Context, sch School) (School, error)
	GetSchool(ctx context.Context, id string) (School, error)
}

type AdminRepository interface {
	// FindAdmins returns the admins of the school whose email is in emails, in a single round trip.
	FindAdmins(ctx context.Context, schoolID string, emails []string) ([]Admin, error)
	QueryAdmins(ctx context.Context, schoolID string) ([]Admin, error)
	GetAdmin(ctx context.Context, schoolID, email string) (Admin, error)
	GetAdminByID(ctx context.Context, id string) (Admin, error)
	CreateAdmin(ctx context.Context, adm Admin) (Admin, error)
	UpdateAdmin(ctx context.Context, adm Admin) (Admin, error)
	DeleteAdmin(ctx context.Context, schoolID, id string) error
}

type ParentRepository interface {
	// FindParents returns the parents of the school whose email is in emails, with their StudentIDs loaded.
	FindParents(ctx context.Context, schoolID string, emails []string) ([]Parent, error)
	QueryParents(ctx context.Context, schoolID string) ([]Parent, error)
	CreateParent(ctx context.Context, par Parent) (Parent, error)
	UpdateParent(ctx context.Context, par Parent) (Parent, error)
	// DeleteParent also removes the parent's student links.
	DeleteParent(ctx context.Context, schoolID, id string) error

	LinkStudents(ctx context.Context, parentID string, studentIDs ...string) error
	UnlinkStudents(ctx context.Context, parentID string, studentIDs ...string) error
	// CountParents returns the number of parents linked to each of studentIDs. Students without parents are omitted.
	CountParents(ctx context.Context, studentIDs []string) (map[string]int, error)
}

type StudentRepository interface {
	// FindStudents returns the students of the school whose student number is in numbers, in a single round trip.
	FindStudents(ctx context.Context, schoolID string, numbers []string) ([]Student, error)
	QueryStudents(ctx context.Context, schoolID string) ([]Student, error)
	CreateStudent(ctx context.Context, std Student) (Student, error)
	UpdateStudent(ctx context.Context, std Student) (Student, error)
	// DeleteStudent also removes the student's parent links.
	DeleteStudent(ctx context.Context, schoolID, id string) error
}

// Repositories groups the persistence collaborators of a school.
type Repositories struct {
	Schools  SchoolRepository
	Admins   AdminRepository
	Parents  ParentRepository
	Students StudentRepository
}
