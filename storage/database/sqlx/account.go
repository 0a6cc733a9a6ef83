package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/storage/database"
)

const accountColumns = "id, name, email, role, is_verified, password_hash, created_at, updated_at, last_login"

type dbAccount struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	IsVerified   bool      `db:"is_verified"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func toDBAccount(acc account.Account) dbAccount {
	return dbAccount{
		ID:           acc.ID,
		Name:         acc.Name,
		Email:        acc.Email,
		Role:         string(acc.Role),
		IsVerified:   acc.IsVerified,
		PasswordHash: acc.PasswordHash,
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
		LastLogin:    null.NewTime(acc.LastLogin, !acc.LastLogin.IsZero()),
	}
}

func (a dbAccount) toAccount() account.Account {
	return account.Account{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		Role:         session.Role(a.Role),
		IsVerified:   a.IsVerified,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
		LastLogin:    a.LastLogin.Time.UTC(),
	}
}

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	q := `INSERT INTO account (` + accountColumns + `)
		VALUES (:id, :name, :email, :role, :is_verified, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, toDBAccount(acc)); err != nil {
		if database.IsUniqueViolation(err) {
			return account.Account{}, account.ErrEmailExists
		}
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return acc, nil
}

func (repo *accountRepository) get(ctx context.Context, where string, arg interface{}) (account.Account, error) {
	var a dbAccount
	err := repo.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM account WHERE `+where, arg)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "selecting account")
	}
	return a.toAccount(), nil
}

func (repo *accountRepository) GetAccountByID(ctx context.Context, id string) (account.Account, error) {
	return repo.get(ctx, "id = $1", id)
}

func (repo *accountRepository) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	return repo.get(ctx, "email = $1", email)
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	q := `UPDATE account SET
			name = :name,
			email = :email,
			role = :role,
			is_verified = :is_verified,
			password_hash = COALESCE(:password_hash, password_hash),
			updated_at = :updated_at,
			last_login = COALESCE(:last_login, last_login)
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toDBAccount(acc))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return account.Account{}, account.ErrEmailExists
		}
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return repo.GetAccountByID(ctx, acc.ID)
}
