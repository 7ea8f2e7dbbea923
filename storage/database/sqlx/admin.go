package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/roster/core/school"
)

const adminColumns = `id, school_id, email, phone_number, given_name, family_name, is_active, password_hash, created_at, updated_at, last_login`

type adminRow struct {
	ID           string     `db:"id"`
	SchoolID     string     `db:"school_id"`
	Email        string     `db:"email"`
	PhoneNumber  string     `db:"phone_number"`
	GivenName    string     `db:"given_name"`
	FamilyName   string     `db:"family_name"`
	IsActive     bool       `db:"is_active"`
	PasswordHash null.Bytes `db:"password_hash"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLogin    null.Time  `db:"last_login"`
}

func toAdminRow(adm school.Admin) adminRow {
	return adminRow{
		ID:           adm.ID,
		SchoolID:     adm.SchoolID,
		Email:        adm.Email,
		PhoneNumber:  adm.PhoneNumber,
		GivenName:    adm.GivenName,
		FamilyName:   adm.FamilyName,
		IsActive:     adm.IsActive,
		PasswordHash: null.NewBytes(adm.PasswordHash, len(adm.PasswordHash) > 0),
		CreatedAt:    adm.CreatedAt.UTC(),
		UpdatedAt:    adm.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(adm.LastLogin.UTC(), !adm.LastLogin.IsZero()),
	}
}

func (r adminRow) admin() school.Admin {
	return school.Admin{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		Email:        r.Email,
		PhoneNumber:  r.PhoneNumber,
		GivenName:    r.GivenName,
		FamilyName:   r.FamilyName,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type adminRepository struct {
	db sqlx.ExtContext
}

var _ school.AdminRepository = (*adminRepository)(nil) // interface compliance check

func NewAdminRepository(db sqlx.ExtContext) *adminRepository {
	return &adminRepository{db: db}
}

func (repo adminRepository) selectAdmins(ctx context.Context, q string, args ...interface{}) ([]school.Admin, error) {
	var rows []adminRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, trapErr(err, "selecting admins")
	}
	admins := make([]school.Admin, 0, len(rows))
	for _, r := range rows {
		admins = append(admins, r.admin())
	}
	return admins, nil
}

func (repo adminRepository) FindAdmins(ctx context.Context, schoolID string, emails []string) ([]school.Admin, error) {
	if len(emails) == 0 {
		return []school.Admin{}, nil
	}
	q, args, err := in(repo.db, `SELECT `+adminColumns+` FROM admin WHERE school_id = ? AND email IN (?)`, schoolID, emails)
	if err != nil {
		return nil, err
	}
	return repo.selectAdmins(ctx, q, args...)
}

func (repo adminRepository) QueryAdmins(ctx context.Context, schoolID string) ([]school.Admin, error) {
	q := `SELECT ` + adminColumns + ` FROM admin WHERE school_id = $1 ORDER BY created_at, email`
	return repo.selectAdmins(ctx, q, schoolID)
}

func (repo adminRepository) GetAdmin(ctx context.Context, schoolID, email string) (school.Admin, error) {
	if _, err := uuid.Parse(schoolID); err != nil {
		return school.Admin{}, school.ErrNotFound
	}
	var r adminRow
	q := `SELECT ` + adminColumns + ` FROM admin WHERE school_id = $1 AND email = $2`
	if err := sqlx.GetContext(ctx, repo.db, &r, q, schoolID, email); err != nil {
		return school.Admin{}, trapErr(err, "selecting admin")
	}
	return r.admin(), nil
}

func (repo adminRepository) GetAdminByID(ctx context.Context, id string) (school.Admin, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Admin{}, school.ErrNotFound
	}
	var r adminRow
	if err := sqlx.GetContext(ctx, repo.db, &r, `SELECT `+adminColumns+` FROM admin WHERE id = $1`, id); err != nil {
		return school.Admin{}, trapErr(err, "selecting admin")
	}
	return r.admin(), nil
}

func (repo adminRepository) CreateAdmin(ctx context.Context, adm school.Admin) (school.Admin, error) {
	adm.ID = uuid.New().String()
	q := `INSERT INTO admin (` + adminColumns + `) VALUES (
		:id, :school_id, :email, :phone_number, :given_name, :family_name, :is_active, :password_hash, :created_at, :updated_at, :last_login
	)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, toAdminRow(adm)); err != nil {
		return school.Admin{}, trapErr(err, "inserting admin")
	}
	return adm, nil
}

func (repo adminRepository) UpdateAdmin(ctx context.Context, adm school.Admin) (school.Admin, error) {
	q := `UPDATE admin SET
		email = :email, phone_number = :phone_number, given_name = :given_name, family_name = :family_name,
		is_active = :is_active, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
	WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, toAdminRow(adm))
	if err != nil {
		return school.Admin{}, trapErr(err, "updating admin")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Admin{}, school.ErrNotFound
	}
	return adm, nil
}

func (repo adminRepository) DeleteAdmin(ctx context.Context, schoolID, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM admin WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return trapErr(err, "deleting admin")
	}
	return nil
}
