package identity

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/clue/log"
	"gorm.io/gorm"

	"almondsense/internal/config"
	"almondsense/internal/database"
	"almondsense/internal/domain"
	"almondsense/internal/repository"
)

const secret = "0123456789abcdef0123456789abcdef"

func setup(t *testing.T) (context.Context, *gorm.DB, *Provider) {
	t.Helper()
	ctx := log.Context(context.Background(), log.WithOutput(io.Discard))
	db, err := database.Open(ctx, config.DatabaseConfig{URL: "sqlite:///:memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return ctx, db, NewProvider(db, secret, time.Hour, nil)
}

func validInput() SignUpInput {
	return SignUpInput{
		Email:    "Sari@Tani.id",
		Password: "rahasia",
		FullName: "Sari Wulandari",
		Phone:    "081234567890",
		Company:  "Tani Maju",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignUpInput)
		msg    string
	}{
		{"email", func(in *SignUpInput) { in.Email = "sari" }, "Email tidak valid"},
		{"display name email", func(in *SignUpInput) { in.Email = "Sari <sari@tani.id>" }, "Email tidak valid"},
		{"password", func(in *SignUpInput) { in.Password = "12345" }, "Password minimal 6 karakter"},
		{"name", func(in *SignUpInput) { in.FullName = " S " }, "Nama minimal 2 karakter"},
		{"phone", func(in *SignUpInput) { in.Phone = "0812" }, "Nomor telepon tidak valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
	assert.NoError(t, validInput().Validate())
}

func TestSignUpCreatesAccountAndProfile(t *testing.T) {
	ctx, db, p := setup(t)

	token, profile, err := p.SignUp(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, "sari@tani.id", profile.Email)
	assert.Equal(t, "Tani Maju", profile.Company)
	assert.NotEmpty(t, profile.ID)

	id, err := p.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, profile.UserID, id.AccountID)
	assert.Equal(t, "sari@tani.id", id.Email)

	got, err := p.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, got.ID)

	var accounts int64
	require.NoError(t, db.Model(&domain.Account{}).Count(&accounts).Error)
	assert.EqualValues(t, 1, accounts)
}

func TestSignUpDuplicateEmailLeavesNoProfile(t *testing.T) {
	ctx, db, p := setup(t)
	_, _, err := p.SignUp(ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Email = "SARI@tani.id"
	_, _, err = p.SignUp(ctx, in)
	assert.ErrorIs(t, err, ErrEmailTaken)

	profiles, err := repository.ProfilesByEmail(ctx, db, "sari@tani.id")
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestSignInAndSignOut(t *testing.T) {
	ctx, _, p := setup(t)
	_, _, err := p.SignUp(ctx, validInput())
	require.NoError(t, err)

	_, _, err = p.SignIn(ctx, "sari@tani.id", "salah!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = p.SignIn(ctx, "nobody@tani.id", "rahasia")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = p.SignIn(ctx, "sari@tani.id", "")
	assert.ErrorIs(t, err, ErrValidation)

	token, id, err := p.SignIn(ctx, "SARI@tani.id", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, "sari@tani.id", id.Email)

	require.NoError(t, p.SignOut(ctx, token))
	_, err = p.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, p.SignOut(ctx, token), ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	ctx, _, p := setup(t)
	_, err := p.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
