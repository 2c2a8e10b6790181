// Package identity is the customer identity provider: e-mail/password
// accounts, each owning exactly one profile, and revocable session tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"goa.design/clue/log"
	"gorm.io/gorm"

	"almondsense/internal/domain"
	"almondsense/internal/metrics"
	"almondsense/internal/repository"
	"almondsense/internal/util"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation         = errors.New("validation failed")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or revoked token")
)

// ValidationError carries the message shown to the customer.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// SignUpInput is the registration form.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
}

// Validate applies the registration form rules.
func (in SignUpInput) Validate() error {
	switch {
	case !validEmail(in.Email):
		return invalid("Email tidak valid")
	case utf8.RuneCountInString(in.Password) < 6:
		return invalid("Password minimal 6 karakter")
	case utf8.RuneCountInString(strings.TrimSpace(in.FullName)) < 2:
		return invalid("Nama minimal 2 karakter")
	case utf8.RuneCountInString(strings.TrimSpace(in.Phone)) < 10:
		return invalid("Nomor telepon tidak valid")
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Name == "" && strings.Contains(addr.Address, "@")
}

// Identity is a verified customer token.
type Identity struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Provider registers and authenticates customers.
type Provider struct {
	db       *gorm.DB
	accounts *repository.Accounts
	profiles *repository.GormStore[domain.Profile]
	tokens   *util.TokenIssuer
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewProvider returns a provider. now may be nil.
func NewProvider(db *gorm.DB, secret string, ttl time.Duration, now func() time.Time, opts ...repository.Option) *Provider {
	if now == nil {
		now = time.Now
	}
	return &Provider{
		db:       db,
		accounts: repository.NewAccounts(db, opts...),
		profiles: repository.NewProfiles(db, opts...),
		tokens:   util.NewTokenIssuer(secret, util.AudienceCustomer, ttl, now),
		now:      now,
		revoked:  make(map[string]time.Time),
	}
}

// SignUp creates the account and its profile in one transaction and
// returns a session token.
func (p *Provider) SignUp(ctx context.Context, in SignUpInput) (string, *domain.Profile, error) {
	if err := in.Validate(); err != nil {
		return "", nil, err
	}
	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	var (
		acc     *domain.Account
		profile domain.Profile
	)
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		acc, err = p.accounts.WithTx(tx).Create(ctx, in.Email, hash)
		if err != nil {
			return err
		}
		profile, err = p.profiles.WithTx(tx).Create(ctx, domain.Profile{
			UserID:   acc.ID,
			FullName: strings.TrimSpace(in.FullName),
			Email:    acc.Email,
			Phone:    strings.TrimSpace(in.Phone),
			Company:  strings.TrimSpace(in.Company),
		})
		return err
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		metrics.RecordAuthAttempt("customer", false)
		return "", nil, ErrEmailTaken
	}
	if err != nil {
		return "", nil, fmt.Errorf("sign up: %w", err)
	}

	token, _, err := p.tokens.Generate(acc.ID, uuid.NewString(), acc.Email)
	if err != nil {
		return "", nil, err
	}
	metrics.RecordAuthAttempt("customer", true)
	log.Print(ctx, log.KV{K: "msg", V: "customer registered"}, log.KV{K: "account", V: acc.ID})
	return token, &profile, nil
}

// SignIn checks the e-mail/password pair and returns a session token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (string, *Identity, error) {
	if !validEmail(email) {
		return "", nil, invalid("Email tidak valid")
	}
	if password == "" {
		return "", nil, invalid("Password wajib diisi")
	}

	acc, err := p.accounts.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", nil, err
	}
	if acc == nil || !util.CheckPassword(acc.PasswordHash, password) {
		metrics.RecordAuthAttempt("customer", false)
		return "", nil, ErrInvalidCredentials
	}

	token, claims, err := p.tokens.Generate(acc.ID, uuid.NewString(), acc.Email)
	if err != nil {
		return "", nil, err
	}
	metrics.RecordAuthAttempt("customer", true)
	return token, identityFrom(claims), nil
}

// Verify returns the identity behind a live, unrevoked token.
func (p *Provider) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := p.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	p.mu.Lock()
	_, revoked := p.revoked[claims.ID]
	p.mu.Unlock()
	if revoked {
		return nil, ErrInvalidToken
	}
	return identityFrom(claims), nil
}

// SignOut revokes token until it would have expired anyway.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	id, err := p.Verify(ctx, token)
	if err != nil {
		return err
	}
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for jti, exp := range p.revoked {
		if !now.Before(exp) {
			delete(p.revoked, jti)
		}
	}
	p.revoked[id.TokenID] = id.ExpiresAt
	return nil
}

// Profile returns the profile owned by the verified identity.
func (p *Provider) Profile(ctx context.Context, id *Identity) (*domain.Profile, error) {
	return repository.ProfileByUserID(ctx, p.db, id.AccountID)
}

func identityFrom(c *util.Claims) *Identity {
	return &Identity{
		AccountID: c.Subject,
		Email:     c.Email,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}
}
