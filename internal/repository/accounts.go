package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"almondsense/internal/domain"
)

// ErrDuplicateEmail reports an account e-mail that is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// Accounts stores identity-provider accounts.
type Accounts struct {
	db   *gorm.DB
	opts options
}

// NewAccounts returns the account store.
func NewAccounts(db *gorm.DB, opts ...Option) *Accounts {
	return &Accounts{db: db, opts: buildOptions(opts)}
}

// WithTx returns a copy of a bound to tx.
func (a *Accounts) WithTx(tx *gorm.DB) *Accounts {
	return &Accounts{db: tx, opts: a.opts}
}

// Create registers a new account. The e-mail is stored lowercased.
func (a *Accounts) Create(ctx context.Context, email, passwordHash string) (*domain.Account, error) {
	email = normalizeEmail(email)
	if _, err := a.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	acc := &domain.Account{
		ID:           a.opts.newID(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    a.opts.now(),
	}
	if err := a.db.WithContext(ctx).Create(acc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

// FindByEmail returns the account registered with email.
func (a *Accounts) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var acc domain.Account
	err := a.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &acc, nil
}

// FindByID returns the account with the given id.
func (a *Accounts) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	var acc domain.Account
	err := a.db.WithContext(ctx).Where("id = ?", id).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &acc, nil
}
