package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/school"
	logsvc "github.com/trezcool/roster/services/logger"
	inmemdb "github.com/trezcool/roster/storage/database/inmem"
)

// Env holds the collaborators shared by service and API tests.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	DB         *inmemdb.DB
	Repos      school.Repositories
	Validate   *validator.Validate
	Translator ut.Translator
}

// Config returns the test configuration whatever the ENV variable says.
func Config() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Database.Engine = "inmem"
	conf.Import.EmailReports = false
	return conf
}

// Setup returns a fresh in-memory environment.
func Setup(t *testing.T) *Env {
	t.Helper()
	conf := Config()

	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "TEST : ", 0), conf)
	logger.Enable(false)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	db := inmemdb.Open()
	return &Env{
		Conf:       conf,
		Logger:     logger,
		DB:         db,
		Repos:      db.Repositories(),
		Validate:   validate,
		Translator: translator,
	}
}

func CreateSchool(t *testing.T, repos school.Repositories, name string) school.School {
	t.Helper()
	sch, err := repos.Schools.CreateSchool(context.Background(), school.School{Name: name, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateSchool(): %v", err)
	}
	return sch
}

func CreateAdmin(t *testing.T, repos school.Repositories, schoolID, email, pwd string, isActive bool) school.Admin {
	t.Helper()
	now := time.Now().UTC()
	adm := school.Admin{
		SchoolID:  schoolID,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := adm.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAdmin(): %v", err)
		}
	}
	adm, err := repos.Admins.CreateAdmin(context.Background(), adm)
	if err != nil {
		t.Fatalf("CreateAdmin(): %v", err)
	}
	return adm
}

func CreateStudent(t *testing.T, repos school.Repositories, schoolID, number, email string) school.Student {
	t.Helper()
	now := time.Now().UTC()
	std, err := repos.Students.CreateStudent(context.Background(), school.Student{
		SchoolID:      schoolID,
		StudentNumber: number,
		Email:         email,
		PhoneNumber:   "0123456789",
		GivenName:     "Student",
		FamilyName:    number,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateStudent(): %v", err)
	}
	return std
}

// CreateParent creates a parent linked to studentIDs.
func CreateParent(t *testing.T, repos school.Repositories, schoolID, email string, studentIDs ...string) school.Parent {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	par, err := repos.Parents.CreateParent(ctx, school.Parent{
		SchoolID:    schoolID,
		Email:       email,
		PhoneNumber: "0123456789",
		GivenName:   "Parent",
		FamilyName:  email,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateParent(): %v", err)
	}
	if len(studentIDs) > 0 {
		if err = repos.Parents.LinkStudents(ctx, par.ID, studentIDs...); err != nil {
			t.Fatalf("CreateParent(): %v", err)
		}
		par.StudentIDs = studentIDs
	}
	return par
}
