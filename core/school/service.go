package school

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
)

var errNameRequired = errors.New("school name is required")

// Service manages schools and their admin accounts.
type Service struct {
	repos      Repositories
	validate   *validator.Validate
	translator ut.Translator
}

func NewService(repos Repositories, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repos: repos, validate: validate, translator: translator}
}

func (svc *Service) CreateSchool(ctx context.Context, name string) (School, error) {
	name = core.CleanString(name)
	if name == "" {
		return School{}, core.NewValidationError(errNameRequired)
	}
	sch, err := svc.repos.Schools.CreateSchool(ctx, School{Name: name, CreatedAt: NowFunc()})
	if err != nil {
		return School{}, errors.Wrap(err, "creating school")
	}
	return sch, nil
}

func (svc *Service) GetSchool(ctx context.Context, id string) (School, error) {
	return svc.repos.Schools.GetSchool(ctx, id)
}

// AddAdmin updates or creates an active Admin with the given password.
func (svc *Service) AddAdmin(ctx context.Context, na NewAdmin) (Admin, error) {
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.PhoneNumber = core.CleanString(na.PhoneNumber)
	na.GivenName = core.CleanString(na.GivenName)
	na.FamilyName = core.CleanString(na.FamilyName)
	if err := svc.validateStruct(na); err != nil {
		return Admin{}, err
	}
	if _, err := svc.repos.Schools.GetSchool(ctx, na.SchoolID); err != nil {
		return Admin{}, errors.Wrap(err, "getting school")
	}

	adm, err := svc.repos.Admins.GetAdmin(ctx, na.SchoolID, na.Email)
	exists := err == nil
	if err != nil && errors.Cause(err) != ErrNotFound {
		return Admin{}, errors.Wrap(err, "getting admin")
	}
	if !exists {
		adm = Admin{SchoolID: na.SchoolID, Email: na.Email, CreatedAt: NowFunc()}
	}
	if na.PhoneNumber != "" {
		adm.PhoneNumber = na.PhoneNumber
	}
	if na.GivenName != "" {
		adm.GivenName = na.GivenName
	}
	if na.FamilyName != "" {
		adm.FamilyName = na.FamilyName
	}
	adm.IsActive = true
	adm.UpdatedAt = NowFunc()
	if err = adm.SetPassword(na.Password); err != nil {
		return Admin{}, errors.Wrap(err, "setting password")
	}

	if exists {
		adm, err = svc.repos.Admins.UpdateAdmin(ctx, adm)
	} else {
		adm, err = svc.repos.Admins.CreateAdmin(ctx, adm)
	}
	return adm, errors.Wrap(err, "saving admin")
}

func (svc *Service) ResetPassword(ctx context.Context, schoolID, email, pwd string) (Admin, error) {
	adm, err := svc.repos.Admins.GetAdmin(ctx, schoolID, core.CleanString(email, true /* lower */))
	if err != nil {
		return Admin{}, err
	}
	data := SetAdminPassword{
		Email:           adm.Email,
		GivenName:       adm.GivenName,
		FamilyName:      adm.FamilyName,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err = svc.validateStruct(data); err != nil {
		return Admin{}, err
	}
	if err = adm.SetPassword(pwd); err != nil {
		return Admin{}, errors.Wrap(err, "setting password")
	}
	adm.UpdatedAt = NowFunc()
	return svc.repos.Admins.UpdateAdmin(ctx, adm)
}

// Authenticate returns the active Admin matching the credentials, or ErrNotFound.
func (svc *Service) Authenticate(ctx context.Context, schoolID, email, pwd string) (Admin, error) {
	adm, err := svc.repos.Admins.GetAdmin(ctx, schoolID, core.CleanString(email, true /* lower */))
	if err != nil {
		return Admin{}, err
	}
	if err = adm.CheckPassword(pwd); err != nil {
		return Admin{}, ErrNotFound
	}
	return adm, nil
}

func (svc *Service) GetAdminByID(ctx context.Context, id string) (Admin, error) {
	return svc.repos.Admins.GetAdminByID(ctx, id)
}

func (svc *Service) SetLastLogin(ctx context.Context, adm Admin) (Admin, error) {
	adm.LastLogin = NowFunc()
	return svc.repos.Admins.UpdateAdmin(ctx, adm)
}

// validateStruct translates validator errors into a core.ValidationError.
func (svc *Service) validateStruct(s interface{}) error {
	err := svc.validate.Struct(s)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validating")
	}
	fields := make(map[string]string, len(vErrs))
	for _, fe := range vErrs {
		if _, ok := fields[fe.Field()]; !ok {
			fields[fe.Field()] = fe.Translate(svc.translator)
		}
	}
	return core.NewFieldsError(fields)
}
