package importer

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core/school"
)

// parentReconciler links parents to the students listed in their student_numbers column.
// A student can have at most maxParents parents: students at capacity are left out of new links without error.
type parentReconciler struct {
	parents    school.ParentRepository
	students   school.StudentRepository
	schoolID   string
	maxParents int

	existing   map[string]school.Parent // by email
	studentIDs map[string]string        // student number -> ID
	counts     map[string]int           // student ID -> number of linked parents
}

func newParentReconciler(deps reconcilerDeps) reconciler {
	return &parentReconciler{
		parents:    deps.repos.Parents,
		students:   deps.repos.Students,
		schoolID:   deps.schoolID,
		maxParents: deps.maxParentsPerStudent,
	}
}

func (rec *parentReconciler) load(ctx context.Context, rows []*NormalizedRow) error {
	emails := make([]string, 0, len(rows))
	numbers := make([]string, 0)
	seenNumbers := make(map[string]bool)
	for _, r := range rows {
		emails = append(emails, r.Email)
		for _, num := range r.StudentNumbers {
			if !seenNumbers[num] {
				seenNumbers[num] = true
				numbers = append(numbers, num)
			}
		}
	}

	parents, err := rec.parents.FindParents(ctx, rec.schoolID, emails)
	if err != nil {
		return errors.Wrap(err, "finding parents")
	}
	rec.existing = make(map[string]school.Parent, len(parents))
	for _, par := range parents {
		rec.existing[par.Email] = par
	}

	rec.studentIDs = make(map[string]string, len(numbers))
	rec.counts = make(map[string]int, len(numbers))
	if len(numbers) == 0 {
		return nil
	}
	students, err := rec.students.FindStudents(ctx, rec.schoolID, numbers)
	if err != nil {
		return errors.Wrap(err, "finding students")
	}
	ids := make([]string, 0, len(students))
	for _, std := range students {
		rec.studentIDs[std.StudentNumber] = std.ID
		ids = append(ids, std.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	counts, err := rec.parents.CountParents(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "counting parents")
	}
	for id, n := range counts {
		rec.counts[id] = n
	}
	return nil
}

func (rec *parentReconciler) exists(row *NormalizedRow) bool {
	_, ok := rec.existing[row.Email]
	return ok
}

func (rec *parentReconciler) create(ctx context.Context, row *NormalizedRow) (FieldErrorSet, error) {
	now := school.NowFunc()
	par, err := rec.parents.CreateParent(ctx, school.Parent{
		SchoolID:    rec.schoolID,
		Email:       row.Email,
		PhoneNumber: row.PhoneNumber,
		GivenName:   row.GivenName,
		FamilyName:  row.FamilyName,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating parent")
	}
	par.StudentIDs = nil
	defer func() { rec.existing[par.Email] = par }()

	if len(row.StudentNumbers) == 0 {
		return nil, nil
	}
	targets := rec.resolve(row.StudentNumbers)
	if len(targets) == 0 {
		return invalidStudents(row.StudentNumbers), nil
	}
	added, err := rec.link(ctx, par.ID, targets)
	if err != nil {
		return nil, err
	}
	par.StudentIDs = added
	return nil, nil
}

// update overwrites the parent's fields, then applies the difference between its current and requested students.
// A blank student_numbers cell leaves the links untouched.
func (rec *parentReconciler) update(ctx context.Context, row *NormalizedRow) (FieldErrorSet, error) {
	par := rec.existing[row.Email]
	par.PhoneNumber = row.PhoneNumber
	par.GivenName = row.GivenName
	par.FamilyName = row.FamilyName
	par.UpdatedAt = school.NowFunc()
	studentIDs := par.StudentIDs
	par, err := rec.parents.UpdateParent(ctx, par)
	if err != nil {
		return nil, errors.Wrap(err, "updating parent")
	}
	par.StudentIDs = studentIDs
	defer func() { rec.existing[par.Email] = par }()

	if len(row.StudentNumbers) == 0 {
		return nil, nil
	}
	targets := rec.resolve(row.StudentNumbers)
	if len(targets) == 0 {
		return invalidStudents(row.StudentNumbers), nil
	}

	current := make(map[string]bool, len(par.StudentIDs))
	for _, id := range par.StudentIDs {
		current[id] = true
	}
	wanted := make(map[string]bool, len(targets))
	for _, id := range targets {
		wanted[id] = true
	}

	kept := make([]string, 0, len(par.StudentIDs))
	removed := make([]string, 0)
	for _, id := range par.StudentIDs {
		if wanted[id] {
			kept = append(kept, id)
		} else {
			removed = append(removed, id)
		}
	}
	additions := make([]string, 0)
	for _, id := range targets {
		if !current[id] {
			additions = append(additions, id)
		}
	}

	if len(removed) > 0 {
		if err = rec.parents.UnlinkStudents(ctx, par.ID, removed...); err != nil {
			return nil, errors.Wrap(err, "unlinking students")
		}
		for _, id := range removed {
			rec.release(id)
		}
	}
	par.StudentIDs = kept
	added, err := rec.link(ctx, par.ID, additions)
	if err != nil {
		return nil, err
	}
	par.StudentIDs = append(par.StudentIDs, added...)
	return nil, nil
}

// delete also drops the parent's student links.
func (rec *parentReconciler) delete(ctx context.Context, row *NormalizedRow) error {
	par := rec.existing[row.Email]
	if err := rec.parents.DeleteParent(ctx, rec.schoolID, par.ID); err != nil {
		return errors.Wrap(err, "deleting parent")
	}
	for _, id := range par.StudentIDs {
		rec.release(id)
	}
	delete(rec.existing, row.Email)
	return nil
}

// resolve maps student numbers to IDs, ignoring unknown and repeated numbers.
func (rec *parentReconciler) resolve(numbers []string) []string {
	ids := make([]string, 0, len(numbers))
	seen := make(map[string]bool, len(numbers))
	for _, num := range numbers {
		id, ok := rec.studentIDs[num]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// link links the students that are below capacity with a single write and returns them.
func (rec *parentReconciler) link(ctx context.Context, parentID string, studentIDs []string) ([]string, error) {
	linkable := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		if rec.maxParents > 0 && rec.counts[id] >= rec.maxParents {
			continue
		}
		linkable = append(linkable, id)
	}
	if len(linkable) == 0 {
		return linkable, nil
	}
	if err := rec.parents.LinkStudents(ctx, parentID, linkable...); err != nil {
		return nil, errors.Wrap(err, "linking students")
	}
	for _, id := range linkable {
		rec.counts[id]++
	}
	return linkable, nil
}

func (rec *parentReconciler) release(studentID string) {
	if rec.counts[studentID] > 0 {
		rec.counts[studentID]--
	}
}

func invalidStudents(numbers []string) FieldErrorSet {
	return FieldErrorSet{ColStudentNumbers: msgInvalidStudents + ": " + strings.Join(numbers, ", ")}
}

func exportParents(ctx context.Context, repos school.Repositories, schoolID string) ([][]string, error) {
	parents, err := repos.Parents.QueryParents(ctx, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	students, err := repos.Students.QueryStudents(ctx, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	numbers := make(map[string]string, len(students))
	for _, std := range students {
		numbers[std.ID] = std.StudentNumber
	}

	records := make([][]string, 0, len(parents))
	for _, par := range parents {
		nums := make([]string, 0, len(par.StudentIDs))
		for _, id := range par.StudentIDs {
			if num, ok := numbers[id]; ok {
				nums = append(nums, num)
			}
		}
		sort.Strings(nums)
		records = append(records, []string{par.Email, par.PhoneNumber, par.GivenName, par.FamilyName, strings.Join(nums, ",")})
	}
	return records, nil
}
