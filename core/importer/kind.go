package importer

import (
	"context"
	"strings"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/school"
)

// Action selects how valid rows are applied against persisted entities.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func parseAction(s string) (Action, error) {
	switch act := Action(core.CleanString(s, true /* lower */)); act {
	case ActionCreate, ActionUpdate, ActionDelete:
		return act, nil
	}
	return "", core.NewValidationError(ErrUnknownAction)
}

// Kind parameterizes the pipeline for one entity kind.
type Kind struct {
	Name      string
	Columns   []string // upload, report and export schema, in order
	DedupKeys []string // columns that must be unique within an upload
	MatchKey  string   // column matched against persisted entities

	newReconciler func(deps reconcilerDeps) reconciler
	export        func(ctx context.Context, repos school.Repositories, schoolID string) ([][]string, error)
}

var (
	KindAdmin = &Kind{
		Name:          "admin",
		Columns:       []string{ColEmail, ColPhoneNumber, ColGivenName, ColFamilyName},
		DedupKeys:     []string{ColEmail},
		MatchKey:      ColEmail,
		newReconciler: newAdminReconciler,
		export:        exportAdmins,
	}

	KindParent = &Kind{
		Name:          "parent",
		Columns:       []string{ColEmail, ColPhoneNumber, ColGivenName, ColFamilyName, ColStudentNumbers},
		DedupKeys:     []string{ColEmail, ColPhoneNumber},
		MatchKey:      ColEmail,
		newReconciler: newParentReconciler,
		export:        exportParents,
	}

	KindStudent = &Kind{
		Name:          "student",
		Columns:       []string{ColEmail, ColPhoneNumber, ColGivenName, ColFamilyName, ColStudentNumber},
		DedupKeys:     []string{ColStudentNumber, ColEmail, ColPhoneNumber},
		MatchKey:      ColStudentNumber,
		newReconciler: newStudentReconciler,
		export:        exportStudents,
	}

	kinds = []*Kind{KindAdmin, KindParent, KindStudent}
)

// LookupKind accepts singular or plural kind names: "parent", "Parents"...
func LookupKind(name string) (*Kind, error) {
	name = strings.TrimSuffix(core.CleanString(name, true /* lower */), "s")
	for _, k := range kinds {
		if k.Name == name {
			return k, nil
		}
	}
	return nil, core.NewValidationError(ErrUnknownKind)
}

type reconcilerDeps struct {
	repos                school.Repositories
	schoolID             string
	maxParentsPerStudent int
}

// reconciler applies the valid rows of one batch. load must run before any write.
type reconciler interface {
	// load fetches everything the batch needs with a fixed number of queries, whatever the number of rows.
	load(ctx context.Context, rows []*NormalizedRow) error
	exists(row *NormalizedRow) bool
	// create and update return a non empty FieldErrorSet when the entity was saved but its relations could not be.
	create(ctx context.Context, row *NormalizedRow) (FieldErrorSet, error)
	update(ctx context.Context, row *NormalizedRow) (FieldErrorSet, error)
	delete(ctx context.Context, row *NormalizedRow) error
}
