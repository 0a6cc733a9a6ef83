package inmemdb

import (
	"context"

	"github.com/jobify/jobify/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.table {
		if a.Email == acc.Email {
			return account.Account{}, account.ErrEmailExists
		}
	}
	repo.db.table[acc.ID] = &acc
	return acc, nil
}

func (repo *accountRepository) GetAccountByID(_ context.Context, id string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acc, ok := repo.db.table[id]; ok {
		return *acc, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acc := range repo.db.table {
		if acc.Email == email {
			return *acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[acc.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	for _, a := range repo.db.table {
		if a.ID != acc.ID && a.Email == acc.Email {
			return account.Account{}, account.ErrEmailExists
		}
	}
	// only save set fields
	if acc.PasswordHash != nil {
		orig.PasswordHash = acc.PasswordHash
	}
	if !acc.LastLogin.IsZero() {
		orig.LastLogin = acc.LastLogin
	}
	orig.Name = acc.Name
	orig.Email = acc.Email
	orig.Role = acc.Role
	orig.IsVerified = acc.IsVerified
	orig.UpdatedAt = acc.UpdatedAt
	return *orig, nil
}
