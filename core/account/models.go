package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/session"
)

// Account is anyone who can sign in: admins, schools, tutors and students.
type Account struct {
	ID           string       `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Email        string       `json:"email" db:"email"`
	Role         session.Role `json:"role" db:"role"`
	IsVerified   bool         `json:"is_verified" db:"is_verified"`
	PasswordHash []byte       `json:"-" db:"password_hash"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    time.Time    `json:"last_login" db:"-"`          // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a Account) Principal() session.Principal {
	return session.Principal{
		ID:         a.ID,
		Role:       a.Role,
		IsVerified: a.IsVerified,
		Name:       a.Name,
	}
}

// NewAccount contains information needed to create a new Account.
type NewAccount struct {
	Name            string       `json:"name" validate:"required,min=2"`
	Email           string       `json:"email" validate:"required,email"`
	Role            session.Role `json:"role" validate:"required,role"`
	Password        string       `json:"password" validate:"required"`
	PasswordConfirm string       `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewAccount) Clean() {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Role = session.Role(core.CleanString(string(na.Role), true /* lower */))
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.Clean()
	return validate.Struct(na)
}

// SignUpRoles can be self-assigned on sign up. Admins are created with the admin CLI.
var SignUpRoles = []session.Role{session.RoleSchool, session.RoleTutor, session.RoleStudent}

func isSignUpRole(r session.Role) bool {
	for _, role := range SignUpRoles {
		if r == role {
			return true
		}
	}
	return false
}
