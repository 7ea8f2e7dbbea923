package school

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var NowFunc = func() time.Time { return time.Now().UTC() } // mockable

// School is the owning scope of every other entity: natural keys and relation capacities are evaluated within it.
type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Admin struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phone_number"`
	GivenName    string    `json:"given_name"`
	FamilyName   string    `json:"family_name"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (a *Admin) FullName() string {
	return strings.TrimSpace(a.GivenName + " " + a.FamilyName)
}

func (a *Admin) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

// CheckPassword fails for admins created through an upload until a password has been set.
func (a *Admin) CheckPassword(pwd string) error {
	if len(a.PasswordHash) == 0 {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

type Parent struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	GivenName   string    `json:"given_name"`
	FamilyName  string    `json:"family_name"`
	StudentIDs  []string  `json:"student_ids"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Student struct {
	ID            string    `json:"id"`
	SchoolID      string    `json:"school_id"`
	StudentNumber string    `json:"student_number"`
	Email         string    `json:"email"`
	PhoneNumber   string    `json:"phone_number"`
	GivenName     string    `json:"given_name"`
	FamilyName    string    `json:"family_name"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// NewAdmin contains information needed to create an Admin from the command line.
type NewAdmin struct {
	SchoolID        string `json:"school_id" validate:"required"`
	Email           string `json:"email" validate:"required,simple_email"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,digits"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// SetAdminPassword defines what is needed to (re)set an Admin's password.
type SetAdminPassword struct {
	Email           string `json:"email"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}
