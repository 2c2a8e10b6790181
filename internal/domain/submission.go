package domain

import (
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"

	"almondsense/internal/lifecycle"
)

// Services is the catalogue offered on the public contact form.
var Services = []string{
	"Pemantauan IoT Real-time",
	"Analisis AI Prediktif",
	"Prakiraan Cuaca Lokal",
	"Manajemen Tanaman",
	"Dashboard Analitik",
	"Paket Lengkap",
}

// Submission represents a lead captured by the public contact form
type Submission struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	Name      string           `gorm:"not null" json:"name"`
	Email     string           `gorm:"not null;index" json:"email"`
	Phone     string           `gorm:"not null" json:"phone"`
	Company   string           `json:"company"`
	Service   string           `gorm:"not null" json:"service"`
	LandSize  string           `json:"land_size"`
	Message   string           `gorm:"type:text" json:"message"`
	Status    lifecycle.Status `gorm:"not null;default:'pending';index" json:"status"`
	CreatedAt time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TableName specifies the table name for Submission
func (Submission) TableName() string {
	return "submissions"
}

var submissionColumns = map[string]column{
	"name":      {required: true},
	"email":     {required: true},
	"phone":     {required: true},
	"company":   {},
	"service":   {required: true, check: checkService},
	"land_size": {},
	"message":   {},
	"status":    {required: true, check: checkStatus},
}

func checkService(s string) error {
	if !slices.Contains(Services, s) {
		return fmt.Errorf("unknown service %q", s)
	}
	return nil
}

func checkStatus(s string) error {
	_, err := lifecycle.ParseStatus(s)
	return err
}

func (s Submission) RecordID() string     { return s.ID }
func (s Submission) Created() time.Time   { return s.CreatedAt }
func (s Submission) SearchText() []string { return []string{s.Name, s.Email, s.Company} }

func (Submission) Normalize(f Fields) (Fields, error) {
	out, err := normalize("submission", submissionColumns, f)
	if err != nil {
		return nil, err
	}
	if v, ok := out["status"]; ok {
		st, _ := lifecycle.ParseStatus(v.(string))
		out["status"] = string(st)
	}
	return out, nil
}

func (s Submission) Apply(f Fields) (Submission, error) {
	n, err := s.Normalize(f)
	if err != nil {
		return s, err
	}
	s.Name = str(n, "name", s.Name)
	s.Email = str(n, "email", s.Email)
	s.Phone = str(n, "phone", s.Phone)
	s.Company = str(n, "company", s.Company)
	s.Service = str(n, "service", s.Service)
	s.LandSize = str(n, "land_size", s.LandSize)
	s.Message = str(n, "message", s.Message)
	s.Status = lifecycle.Status(str(n, "status", string(s.Status)))
	return s, nil
}

func (s Submission) WithIdentity(id string, created time.Time) Submission {
	s.ID = id
	s.CreatedAt = created
	s.UpdatedAt = created
	return s
}

// BeforeSave rejects a status outside the lifecycle enumeration
func (s *Submission) BeforeSave(tx *gorm.DB) error {
	if s.Status == "" {
		s.Status = lifecycle.Initial()
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: submission %s has status %q", ErrInvalidFields, s.ID, s.Status)
	}
	return nil
}

// NewSubmission builds a pending submission from the public form payload.
func NewSubmission(f Fields) (Submission, error) {
	for _, k := range []string{"name", "email", "phone", "service"} {
		if _, ok := f[k]; !ok {
			return Submission{}, fmt.Errorf("%w: submission.%s is required", ErrInvalidFields, k)
		}
	}
	if _, ok := f["status"]; ok {
		return Submission{}, fmt.Errorf("%w: status is assigned by the desk", ErrInvalidFields)
	}
	return Submission{Status: lifecycle.Initial()}.Apply(f)
}
