package importer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core/school"
)

type adminReconciler struct {
	repo     school.AdminRepository
	schoolID string
	existing map[string]school.Admin // by email
}

func newAdminReconciler(deps reconcilerDeps) reconciler {
	return &adminReconciler{repo: deps.repos.Admins, schoolID: deps.schoolID}
}

func (rec *adminReconciler) load(ctx context.Context, rows []*NormalizedRow) error {
	emails := make([]string, 0, len(rows))
	for _, r := range rows {
		emails = append(emails, r.Email)
	}
	admins, err := rec.repo.FindAdmins(ctx, rec.schoolID, emails)
	if err != nil {
		return errors.Wrap(err, "finding admins")
	}
	rec.existing = make(map[string]school.Admin, len(admins))
	for _, adm := range admins {
		rec.existing[adm.Email] = adm
	}
	return nil
}

func (rec *adminReconciler) exists(row *NormalizedRow) bool {
	_, ok := rec.existing[row.Email]
	return ok
}

// create adds an active admin without password: they log in once a password is set from the admin CLI.
func (rec *adminReconciler) create(ctx context.Context, row *NormalizedRow) (FieldErrorSet, error) {
	now := school.NowFunc()
	adm, err := rec.repo.CreateAdmin(ctx, school.Admin{
		SchoolID:    rec.schoolID,
		Email:       row.Email,
		PhoneNumber: row.PhoneNumber,
		GivenName:   row.GivenName,
		FamilyName:  row.FamilyName,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating admin")
	}
	rec.existing[adm.Email] = adm
	return nil, nil
}

func (rec *adminReconciler) update(ctx context.Context, row *NormalizedRow) (FieldErrorSet, error) {
	adm := rec.existing[row.Email]
	adm.PhoneNumber = row.PhoneNumber
	adm.GivenName = row.GivenName
	adm.FamilyName = row.FamilyName
	adm.UpdatedAt = school.NowFunc()
	adm, err := rec.repo.UpdateAdmin(ctx, adm)
	if err != nil {
		return nil, errors.Wrap(err, "updating admin")
	}
	rec.existing[adm.Email] = adm
	return nil, nil
}

func (rec *adminReconciler) delete(ctx context.Context, row *NormalizedRow) error {
	adm := rec.existing[row.Email]
	if err := rec.repo.DeleteAdmin(ctx, rec.schoolID, adm.ID); err != nil {
		return errors.Wrap(err, "deleting admin")
	}
	delete(rec.existing, row.Email)
	return nil
}

func exportAdmins(ctx context.Context, repos school.Repositories, schoolID string) ([][]string, error) {
	admins, err := repos.Admins.QueryAdmins(ctx, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying admins")
	}
	records := make([][]string, 0, len(admins))
	for _, adm := range admins {
		records = append(records, []string{adm.Email, adm.PhoneNumber, adm.GivenName, adm.FamilyName})
	}
	return records, nil
}
