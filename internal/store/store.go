// Package store keeps member profiles and their last attendance time.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/logging"
)

// Backend persists profiles. Each mutating call is one atomic
// read-modify-write transaction with respect to every other writer.
type Backend interface {
	// Get returns ErrNotFound for unknown keys.
	Get(ctx context.Context, key string) (*Profile, error)
	// Add inserts a validated profile. Returns ErrAlreadyExists if the key is taken.
	Add(ctx context.Context, key string, p Profile) error
	// Touch sets the last attendance time. Returns ErrNotFound for unknown keys.
	Touch(ctx context.Context, key string, at Timestamp) error
	// List returns every member in unspecified order.
	List(ctx context.Context) ([]Member, error)
	Close() error
}

// Store applies the failure policy on top of a Backend: reads and touches
// never fail the caller, storage errors are logged and reported as nil/false.
type Store struct {
	backend Backend
	clock   clock.Clock
	log     *zap.SugaredLogger
}

// New wraps a backend. A nil clock means wall-clock time.
func New(backend Backend, clk clock.Clock, log *zap.SugaredLogger) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{backend: backend, clock: clk, log: logging.OrNop(log)}
}

// Get returns the profile for key, or nil if it is unknown or cannot be read.
func (s *Store) Get(ctx context.Context, key string) *Profile {
	p, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Errorw("reading member", "key", key, "error", err)
		}
		return nil
	}
	return p
}

// Add validates p and inserts it under key. A missing last attendance
// defaults to now. Returns ErrValidation, ErrAlreadyExists or a storage error.
func (s *Store) Add(ctx context.Context, key string, p Profile) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: identity key is required", ErrValidation)
	}
	if err := p.Validate(); err != nil {
		s.log.Warnw("rejected member", "key", key, "error", err)
		return err
	}
	if p.LastAttendance.IsZero() {
		p.LastAttendance = NewTimestamp(s.clock.Now())
	} else {
		p.LastAttendance = NewTimestamp(p.LastAttendance.Time)
	}

	if err := s.backend.Add(ctx, key, p); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.log.Warnw("member already exists", "key", key)
			return err
		}
		s.log.Errorw("adding member", "key", key, "error", err)
		return fmt.Errorf("adding member %s: %w", key, err)
	}

	s.log.Infow("added member", "key", key, "name", p.FullName)
	return nil
}

// TouchAttendance sets the last attendance of key to now. It returns false
// when the key is unknown or the update could not be stored.
func (s *Store) TouchAttendance(ctx context.Context, key string) bool {
	if err := s.backend.Touch(ctx, key, NewTimestamp(s.clock.Now())); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Errorw("updating attendance", "key", key, "error", err)
		}
		return false
	}
	return true
}

// List returns all members sorted by key.
func (s *Store) List(ctx context.Context) ([]Member, error) {
	members, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Key < members[j].Key })
	return members, nil
}

// Find returns members whose normalised name contains the normalised query.
func (s *Store) Find(ctx context.Context, name string) ([]Member, error) {
	members, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	query := NormalizeName(name)
	var found []Member
	for _, m := range members {
		if strings.Contains(NormalizeName(m.FullName), query) {
			found = append(found, m)
		}
	}
	return found, nil
}

// Now is the store's notion of the current time.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

func (s *Store) Close() error {
	return s.backend.Close()
}
