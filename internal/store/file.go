package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
)

const lockRetryDelay = 10 * time.Millisecond

// FileBackend stores all members in one indented JSON object keyed by identity key.
// Every mutation reads the whole file, changes it and atomically replaces it
// while holding both an in-process mutex and an exclusive lock on a sidecar
// ".lock" file, so writers in other processes cannot lose updates either.
type FileBackend struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileBackend opens the members file at path, creating its directory and,
// when the file does not exist yet, writing seed into it. Failing to create
// the directory is the only fatal condition.
func NewFileBackend(ctx context.Context, path string, seed map[string]Profile) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	b := &FileBackend{
		path: path,
		lock: flock.New(path + ".lock"),
	}

	err := b.update(ctx, func(members map[string]Profile, exists bool) (bool, error) {
		if exists {
			return false, nil
		}
		for key, p := range seed {
			members[key] = p
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("initialising members file: %w", err)
	}
	return b, nil
}

// Path returns the members file location.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Get(ctx context.Context, key string) (*Profile, error) {
	var found *Profile
	err := b.view(ctx, func(members map[string]Profile) {
		if p, ok := members[key]; ok {
			found = &p
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (b *FileBackend) Add(ctx context.Context, key string, p Profile) error {
	return b.update(ctx, func(members map[string]Profile, _ bool) (bool, error) {
		if _, ok := members[key]; ok {
			return false, ErrAlreadyExists
		}
		members[key] = p
		return true, nil
	})
}

func (b *FileBackend) Touch(ctx context.Context, key string, at Timestamp) error {
	return b.update(ctx, func(members map[string]Profile, _ bool) (bool, error) {
		p, ok := members[key]
		if !ok {
			return false, ErrNotFound
		}
		if p.LastAttendance.Equal(at.Time) {
			return false, nil
		}
		p.LastAttendance = at
		members[key] = p
		return true, nil
	})
}

func (b *FileBackend) List(ctx context.Context) ([]Member, error) {
	var out []Member
	err := b.view(ctx, func(members map[string]Profile) {
		out = make([]Member, 0, len(members))
		for key, p := range members {
			out = append(out, Member{Key: key, Profile: p})
		}
	})
	return out, err
}

func (b *FileBackend) Close() error {
	return b.lock.Close()
}

// view runs fn over a consistent snapshot under a shared lock.
func (b *FileBackend) view(ctx context.Context, fn func(map[string]Profile)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	locked, err := b.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquiring read lock: %w", err)
	}
	if !locked {
		return errors.New("acquiring read lock: not acquired")
	}
	defer func() { _ = b.lock.Unlock() }()

	members, _, err := b.read()
	if err != nil {
		return err
	}
	fn(members)
	return nil
}

// update runs one read-modify-write transaction under the exclusive lock.
// fn reports whether it changed anything; unchanged files are not rewritten.
func (b *FileBackend) update(ctx context.Context, fn func(members map[string]Profile, exists bool) (bool, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	locked, err := b.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquiring write lock: %w", err)
	}
	if !locked {
		return errors.New("acquiring write lock: not acquired")
	}
	defer func() { _ = b.lock.Unlock() }()

	members, exists, err := b.read()
	if err != nil {
		return err
	}

	changed, err := fn(members, exists)
	if err != nil || !changed {
		return err
	}

	data, err := json.MarshalIndent(members, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding members: %w", err)
	}
	if err := renameio.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("writing members file: %w", err)
	}
	return nil
}

// read loads the members file. A missing file is an empty record set.
func (b *FileBackend) read() (map[string]Profile, bool, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Profile), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading members file: %w", err)
	}

	members := make(map[string]Profile)
	if len(data) == 0 {
		return members, true, nil
	}
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, true, fmt.Errorf("parsing members file: %w", err)
	}
	return members, true, nil
}
