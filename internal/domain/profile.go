package domain

import (
	"fmt"
	"time"
)

// Profile is the operator-visible record created for every registered
// customer. Email is a snapshot taken at registration and only serves as a
// lookup key towards submissions.
type Profile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"uniqueIndex;not null;size:36" json:"user_id"`
	FullName  string    `gorm:"not null" json:"full_name"`
	Email     string    `gorm:"index" json:"email"`
	Phone     string    `json:"phone"`
	Company   string    `json:"company"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

var profileColumns = map[string]column{
	"full_name": {required: true},
	"phone":     {},
	"company":   {},
}

func (p Profile) RecordID() string     { return p.ID }
func (p Profile) Created() time.Time   { return p.CreatedAt }
func (p Profile) SearchText() []string { return []string{p.FullName, p.Company, p.Phone} }

func (Profile) Normalize(f Fields) (Fields, error) {
	return normalize("profile", profileColumns, f)
}

func (p Profile) Apply(f Fields) (Profile, error) {
	n, err := p.Normalize(f)
	if err != nil {
		return p, err
	}
	p.FullName = str(n, "full_name", p.FullName)
	p.Phone = str(n, "phone", p.Phone)
	p.Company = str(n, "company", p.Company)
	return p, nil
}

func (p Profile) WithIdentity(id string, created time.Time) Profile {
	p.ID = id
	p.CreatedAt = created
	p.UpdatedAt = created
	return p
}

// Account is an identity-provider account. It is never exposed to the
// review workflow.
type Account struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}

// String never prints the hash.
func (a Account) String() string {
	return fmt.Sprintf("account(%s, %s)", a.ID, a.Email)
}

// Models lists every persisted type, in migration order.
func Models() []any {
	return []any{&Account{}, &Profile{}, &Submission{}}
}
