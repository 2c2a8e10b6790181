// Package repository is the record store client: list, create, update and
// delete for each reviewable record kind, backed by gorm.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"almondsense/internal/domain"
	"almondsense/internal/metrics"
)

var (
	// ErrNotFound reports an id that does not (or no longer) exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidFields reports a rejected create or update payload.
	ErrInvalidFields = domain.ErrInvalidFields
)

// Store is the four-operation contract of a record kind.
type Store[T any] interface {
	// List returns every record, newest creation time first.
	List(ctx context.Context) ([]T, error)
	// Create persists rec with a store-assigned id and creation time.
	Create(ctx context.Context, rec T) (T, error)
	// Update merges the supplied columns and returns the stored record.
	Update(ctx context.Context, id string, fields domain.Fields) (T, error)
	Delete(ctx context.Context, id string) error
}

// Option configures a GormStore.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs overrides the id generator.
func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GormStore implements Store on a gorm table.
type GormStore[T domain.Record[T]] struct {
	db   *gorm.DB
	kind string
	opts options
}

// NewGormStore returns a store for the table backing T.
func NewGormStore[T domain.Record[T]](db *gorm.DB, kind string, opts ...Option) *GormStore[T] {
	return &GormStore[T]{db: db, kind: kind, opts: buildOptions(opts)}
}

// NewSubmissions returns the submission store.
func NewSubmissions(db *gorm.DB, opts ...Option) *GormStore[domain.Submission] {
	return NewGormStore[domain.Submission](db, "submissions", opts...)
}

// NewProfiles returns the profile store.
func NewProfiles(db *gorm.DB, opts ...Option) *GormStore[domain.Profile] {
	return NewGormStore[domain.Profile](db, "profiles", opts...)
}

// WithTx returns a copy of s bound to tx, keeping its clock and ids.
func (s *GormStore[T]) WithTx(tx *gorm.DB) *GormStore[T] {
	return &GormStore[T]{db: tx, kind: s.kind, opts: s.opts}
}

func (s *GormStore[T]) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidFields) {
		err = nil
	}
	metrics.RecordDBQuery(s.kind+"."+op, time.Since(start), err)
}

func (s *GormStore[T]) List(ctx context.Context) (out []T, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())
	if err = s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind, err)
	}
	return out, nil
}

// Get returns the record with the given id.
func (s *GormStore[T]) Get(ctx context.Context, id string) (rec T, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	err = s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("%s %s: %w", s.kind, id, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("get %s %s: %w", s.kind, id, err)
	}
	return rec, nil
}

func (s *GormStore[T]) Create(ctx context.Context, rec T) (out T, err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(time.Now())
	rec = rec.WithIdentity(s.opts.newID(), s.opts.now())
	if err = s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return out, fmt.Errorf("create %s: %w", s.kind, err)
	}
	return rec, nil
}

func (s *GormStore[T]) Update(ctx context.Context, id string, fields domain.Fields) (out T, err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())
	var zero T
	cols, err := zero.Normalize(fields)
	if err != nil {
		return out, err
	}
	if len(cols) > 0 {
		cols["updated_at"] = s.opts.now()
		// Values are already validated; the save hooks only see an empty model.
		res := s.db.WithContext(ctx).Session(&gorm.Session{SkipHooks: true}).
			Model(new(T)).Where("id = ?", id).Updates(map[string]any(cols))
		if res.Error != nil {
			return out, fmt.Errorf("update %s %s: %w", s.kind, id, res.Error)
		}
		if res.RowsAffected == 0 {
			return out, fmt.Errorf("%s %s: %w", s.kind, id, ErrNotFound)
		}
	}
	return s.Get(ctx, id)
}

func (s *GormStore[T]) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("delete %s %s: %w", s.kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", s.kind, id, ErrNotFound)
	}
	return nil
}
