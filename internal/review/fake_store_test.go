package review

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"almondsense/internal/domain"
	"almondsense/internal/repository"
)

var errDown = errors.New("connection refused")

// fakeStore is an in-memory repository.Store that counts calls and can be
// told to fail.
type fakeStore[T domain.Record[T]] struct {
	mu      sync.Mutex
	records []T
	calls   map[string]int
	fail    map[string]error
	clock   time.Time
	seq     int
	// hold, when set before use, blocks every List until closed.
	hold chan struct{}
}

func newFakeStore[T domain.Record[T]](seed ...T) *fakeStore[T] {
	return &fakeStore[T]{
		records: seed,
		calls:   map[string]int{},
		fail:    map[string]error{},
		clock:   time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore[T]) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *fakeStore[T]) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *fakeStore[T]) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

func (s *fakeStore[T]) enter(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.fail[op]
}

func (s *fakeStore[T]) List(context.Context) ([]T, error) {
	if err := s.enter("list"); err != nil {
		return nil, err
	}
	if s.hold != nil {
		<-s.hold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.records)
	slices.SortStableFunc(out, func(a, b T) int { return b.Created().Compare(a.Created()) })
	return out, nil
}

func (s *fakeStore[T]) Create(_ context.Context, rec T) (T, error) {
	if err := s.enter("create"); err != nil {
		return rec, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.clock = s.clock.Add(time.Minute)
	rec = rec.WithIdentity(fmt.Sprint(s.seq), s.clock)
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *fakeStore[T]) Update(_ context.Context, id string, fields domain.Fields) (T, error) {
	var zero T
	if err := s.enter("update"); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.records, func(r T) bool { return r.RecordID() == id })
	if i < 0 {
		return zero, repository.ErrNotFound
	}
	updated, err := s.records[i].Apply(fields)
	if err != nil {
		return zero, err
	}
	s.records[i] = updated
	return updated, nil
}

func (s *fakeStore[T]) Delete(_ context.Context, id string) error {
	if err := s.enter("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.records, func(r T) bool { return r.RecordID() == id })
	if i < 0 {
		return repository.ErrNotFound
	}
	s.records = slices.Delete(s.records, i, i+1)
	return nil
}
