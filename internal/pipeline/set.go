package pipeline

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Set is the fixed group of sessions served by one process.
type Set struct {
	sessions map[string]*Session
}

// NewSet indexes sessions by camera name. Names must be unique.
func NewSet(sessions ...*Session) (*Set, error) {
	s := &Set{sessions: make(map[string]*Session, len(sessions))}
	for _, sess := range sessions {
		if _, ok := s.sessions[sess.Name()]; ok {
			return nil, fmt.Errorf("duplicate camera %q", sess.Name())
		}
		s.sessions[sess.Name()] = sess
	}
	return s, nil
}

func (s *Set) Get(name string) (*Session, bool) {
	sess, ok := s.sessions[name]
	return sess, ok
}

// All returns the sessions ordered by camera name.
func (s *Set) All() []*Session {
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Run runs every session until ctx is cancelled.
func (s *Set) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sess := range s.All() {
		g.Go(func() error {
			return sess.Run(ctx)
		})
	}
	return g.Wait()
}
