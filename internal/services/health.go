package services

import (
	"context"

	"goa.design/clue/log"
	"gorm.io/gorm"

	"almondsense/internal/database"
)

// HealthResult is the health check response
type HealthResult struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// HealthService implements the health service
type HealthService struct {
	db      *gorm.DB
	name    string
	version string
}

// NewHealthService creates a new health service
func NewHealthService(db *gorm.DB, name, version string) *HealthService {
	return &HealthService{db: db, name: name, version: version}
}

// Check pings the database. The service reports "degraded" rather than
// failing when the database is unreachable.
func (s *HealthService) Check(ctx context.Context) (*HealthResult, error) {
	res := &HealthResult{Status: "healthy", Service: s.name, Version: s.version, Database: "up"}
	if err := database.HealthCheck(ctx, s.db); err != nil {
		log.Errorf(ctx, err, "health check: database unreachable")
		res.Status = "degraded"
		res.Database = "down"
	}
	return res, nil
}
