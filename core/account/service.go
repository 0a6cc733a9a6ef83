package account

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/session"
)

var (
	// errors
	ErrNotFound           = errors.New("account not found")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("please verify your email address before signing in")
	ErrRoleNotAllowed     = errors.New("this role cannot be chosen on sign up")
	ErrInvalidToken       = errors.New("the verification link is invalid or has expired")
)

type (
	Repository interface {
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		GetAccountByID(ctx context.Context, id string) (Account, error)
		GetAccountByEmail(ctx context.Context, email string) (Account, error)
		UpdateAccount(ctx context.Context, acc Account) (Account, error)
	}

	Service struct {
		repo            Repository
		mailSvc         core.EmailService
		validate        *validator.Validate
		tokenGen        *tokenGenerator
		frontendBaseURL string
	}
)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		repo:            repo,
		mailSvc:         mailSvc,
		validate:        validate,
		tokenGen:        newTokenGenerator(conf.SecretKey, conf.VerificationTimeoutDelta),
		frontendBaseURL: strings.TrimSuffix(conf.FrontendBaseURL, "/"),
	}
}

func emailExistsError() error {
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

// Create validates na and stores a new Account. Any role is accepted.
func (svc *Service) Create(ctx context.Context, na NewAccount, verified bool) (Account, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Account{}, err
	}

	now := time.Now().UTC()
	acc := Account{
		ID:         uuid.NewString(),
		Name:       na.Name,
		Email:      na.Email,
		Role:       na.Role,
		IsVerified: verified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}

	acc, err := svc.repo.CreateAccount(ctx, acc)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return Account{}, emailExistsError()
		}
		return Account{}, errors.Wrap(err, "creating account")
	}
	return acc, nil
}

// SignUp creates an unverified Account and emails its verification link.
func (svc *Service) SignUp(ctx context.Context, na NewAccount) (Account, error) {
	na.Clean()
	if na.Role != "" && !isSignUpRole(na.Role) {
		return Account{}, core.NewValidationError(ErrRoleNotAllowed, core.FieldError{Field: "role", Error: ErrRoleNotAllowed.Error()})
	}
	acc, err := svc.Create(ctx, na, false)
	if err != nil {
		return Account{}, err
	}
	svc.sendVerificationMail(acc)
	return acc, nil
}

// Authenticate checks the credentials of an Account. Unverified accounts cannot sign in.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Account, error) {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, errors.Wrap(err, "finding account by email")
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !acc.IsVerified {
		return Account{}, ErrNotVerified
	}

	acc.LastLogin = time.Now().UTC()
	if acc, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
		return Account{}, errors.Wrap(err, "setting last login")
	}
	return acc, nil
}

// RequestVerification emails a new verification link to an unverified Account.
func (svc *Service) RequestVerification(ctx context.Context, email string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !acc.IsVerified {
		svc.sendVerificationMail(acc)
	}
	return nil
}

// Verify marks the Account verified when token is valid.
func (svc *Service) Verify(ctx context.Context, email, token string) (Account, error) {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrInvalidToken
		}
		return Account{}, err
	}
	if err = svc.tokenGen.verifyToken(acc, token); err != nil {
		return Account{}, ErrInvalidToken
	}
	return svc.setVerified(ctx, acc)
}

// MarkVerified verifies an Account without a token.
func (svc *Service) MarkVerified(ctx context.Context, email string) (Account, error) {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	return svc.setVerified(ctx, acc)
}

func (svc *Service) setVerified(ctx context.Context, acc Account) (Account, error) {
	acc.IsVerified = true
	acc.UpdatedAt = time.Now().UTC()
	acc, err := svc.repo.UpdateAccount(ctx, acc)
	return acc, errors.Wrap(err, "verifying account")
}

// SetPassword validates pwd against the password policy and sets it on the Account.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = svc.validate.Struct(PasswordChange{Name: acc.Name, Email: acc.Email, Password: pwd}); err != nil {
		return err
	}
	if err = acc.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	acc.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateAccount(ctx, acc)
	return errors.Wrap(err, "updating password")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccountByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Principal returns the session principal of the Account with id.
func (svc *Service) Principal(ctx context.Context, id string) (session.Principal, error) {
	acc, err := svc.GetByID(ctx, id)
	if err != nil {
		return session.Principal{}, err
	}
	return acc.Principal(), nil
}

func (svc *Service) verifyURL(acc Account) string {
	q := make(url.Values)
	q.Set("email", acc.Email)
	q.Set("token", svc.tokenGen.makeToken(acc))
	return svc.frontendBaseURL + session.VerifyPath + "?" + q.Encode()
}

func (svc *Service) sendVerificationMail(acc Account) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acc.Name, Address: acc.Email}},
		Subject:      "Verify your email address",
		TemplateName: "verify_account",
		TemplateData: struct {
			Name      string
			VerifyURL string
			ValidDays string
		}{
			Name:      acc.Name,
			VerifyURL: svc.verifyURL(acc),
			ValidDays: fmt.Sprint(int(svc.tokenGen.timeout / (24 * time.Hour))),
		},
	})
}
