package services

import (
	"context"
	"errors"
	"time"

	"goa.design/clue/log"
	"gorm.io/gorm"

	"almondsense/internal/domain"
	"almondsense/internal/identity"
	"almondsense/internal/repository"
	"almondsense/internal/stats"
	apperrors "almondsense/pkg/errors"
)

// AuthResult is returned by customer sign-up and sign-in.
type AuthResult struct {
	Token       string          `json:"token"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Profile     *domain.Profile `json:"profile,omitempty"`
}

// Dashboard is the customer's own view: their profile and the submissions
// sent from their e-mail address.
type Dashboard struct {
	Email       string              `json:"email"`
	Profile     *domain.Profile     `json:"profile"`
	Submissions []domain.Submission `json:"submissions"`
	Summary     stats.Summary       `json:"summary"`
}

// CustomerService implements customer registration and the customer
// dashboard
type CustomerService struct {
	db       *gorm.DB
	identity *identity.Provider
	now      func() time.Time
}

// NewCustomerService creates a new customer service
func NewCustomerService(db *gorm.DB, provider *identity.Provider) *CustomerService {
	return &CustomerService{db: db, identity: provider, now: time.Now}
}

// SignUp registers a customer and opens a session.
func (s *CustomerService) SignUp(ctx context.Context, in identity.SignUpInput) (*AuthResult, error) {
	ctx = log.With(ctx, log.KV{K: "svc", V: "customer"})
	token, profile, err := s.identity.SignUp(ctx, in)
	if err != nil {
		return nil, identityError(ctx, "Registrasi Gagal", err)
	}
	return &AuthResult{
		Token:       token,
		Title:       "Registrasi Berhasil",
		Description: "Selamat datang! Anda akan diarahkan ke dashboard.",
		Profile:     profile,
	}, nil
}

// SignIn opens a customer session.
func (s *CustomerService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx = log.With(ctx, log.KV{K: "svc", V: "customer"})
	token, _, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, identityError(ctx, "Login Gagal", err)
	}
	return &AuthResult{
		Token:       token,
		Title:       "Login Berhasil",
		Description: "Selamat datang kembali!",
	}, nil
}

// SignOut revokes the customer token.
func (s *CustomerService) SignOut(ctx context.Context, token string) error {
	if err := s.identity.SignOut(ctx, token); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeUnauthorized, "invalid or expired token", err)
	}
	return nil
}

// Dashboard returns the signed-in customer's profile and submissions,
// newest first.
func (s *CustomerService) Dashboard(ctx context.Context, token string) (*Dashboard, error) {
	ctx = log.With(ctx, log.KV{K: "svc", V: "customer"})
	id, err := s.identity.Verify(ctx, token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUnauthorized, "invalid or expired token", err)
	}

	profile, err := s.identity.Profile(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Errorf(ctx, err, "dashboard: profile lookup failed")
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to load profile", err)
	}
	subs, err := repository.SubmissionsByEmail(ctx, s.db, id.Email)
	if err != nil {
		log.Errorf(ctx, err, "dashboard: submissions lookup failed")
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to load submissions", err)
	}
	if subs == nil {
		subs = []domain.Submission{}
	}
	return &Dashboard{
		Email:       id.Email,
		Profile:     profile,
		Submissions: subs,
		Summary:     stats.Summarize(subs, s.now()),
	}, nil
}

func identityError(ctx context.Context, title string, err error) error {
	var invalid *identity.ValidationError
	switch {
	case errors.As(err, &invalid):
		return apperrors.Wrap(apperrors.ErrCodeValidation, invalid.Message, err)
	case errors.Is(err, identity.ErrEmailTaken):
		return apperrors.Wrap(apperrors.ErrCodeConflict, "Email sudah terdaftar. Silakan login.", err)
	case errors.Is(err, identity.ErrInvalidCredentials):
		return apperrors.Wrap(apperrors.ErrCodeUnauthorized, "Email atau password salah.", err)
	default:
		log.Errorf(ctx, err, "%s", title)
		return apperrors.Wrap(apperrors.ErrCodeInternalError, title, err)
	}
}
