package inmemdb

import (
	"context"

	"github.com/trezcool/roster/core/school"
)

type adminRepository struct {
	db *DB
}

var _ school.AdminRepository = (*adminRepository)(nil)

func NewAdminRepository(db *DB) *adminRepository {
	return &adminRepository{db: db}
}

func (repo *adminRepository) query(schoolID string, keep func(school.Admin) bool) []school.Admin {
	admins := make([]school.Admin, 0)
	for _, r := range sorted(repo.db.admins) {
		adm := r.value.(school.Admin)
		if adm.SchoolID == schoolID && (keep == nil || keep(adm)) {
			admins = append(admins, adm)
		}
	}
	return admins
}

func (repo *adminRepository) FindAdmins(_ context.Context, schoolID string, emails []string) ([]school.Admin, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	set := stringSet(emails)
	return repo.query(schoolID, func(adm school.Admin) bool { return set[adm.Email] }), nil
}

func (repo *adminRepository) QueryAdmins(_ context.Context, schoolID string) ([]school.Admin, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(schoolID, nil), nil
}

func (repo *adminRepository) GetAdmin(_ context.Context, schoolID, email string) (school.Admin, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	found := repo.query(schoolID, func(adm school.Admin) bool { return adm.Email == email })
	if len(found) == 0 {
		return school.Admin{}, school.ErrNotFound
	}
	return found[0], nil
}

func (repo *adminRepository) GetAdminByID(_ context.Context, id string) (school.Admin, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.admins[id]; ok {
		return r.value.(school.Admin), nil
	}
	return school.Admin{}, school.ErrNotFound
}

func (repo *adminRepository) CreateAdmin(_ context.Context, adm school.Admin) (school.Admin, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[adm.SchoolID]; !ok {
		return school.Admin{}, school.ErrNotFound
	}
	if len(repo.query(adm.SchoolID, func(a school.Admin) bool { return a.Email == adm.Email })) > 0 {
		return school.Admin{}, school.ErrDuplicate
	}
	adm.ID = repo.db.insert(repo.db.admins, nil)
	repo.db.admins[adm.ID].value = adm
	return adm, nil
}

func (repo *adminRepository) UpdateAdmin(_ context.Context, adm school.Admin) (school.Admin, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.admins[adm.ID]
	if !ok {
		return school.Admin{}, school.ErrNotFound
	}
	dup := repo.query(adm.SchoolID, func(a school.Admin) bool { return a.Email == adm.Email && a.ID != adm.ID })
	if len(dup) > 0 {
		return school.Admin{}, school.ErrDuplicate
	}
	r.value = adm
	return adm, nil
}

func (repo *adminRepository) DeleteAdmin(_ context.Context, schoolID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if r, ok := repo.db.admins[id]; ok && r.value.(school.Admin).SchoolID == schoolID {
		delete(repo.db.admins, id)
	}
	return nil
}
