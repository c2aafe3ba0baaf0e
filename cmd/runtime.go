package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/kozaktomas/face-attendance/internal/store/mariadb"
	"github.com/kozaktomas/face-attendance/internal/store/postgres"
)

// backends opens the configured storage once and closes everything it opened.
type backends struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	clock   clock.Clock
	pg      *postgres.Pool
	closers []func() error
}

func newBackends(cfg *config.Config, log *zap.SugaredLogger) *backends {
	return &backends{cfg: cfg, log: log, clock: clock.New()}
}

func (b *backends) postgres(ctx context.Context) (*postgres.Pool, error) {
	if b.pg != nil {
		return b.pg, nil
	}
	if b.cfg.Store.PostgresURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Open(ctx, b.cfg.Store, b.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}
	b.pg = pool
	b.closers = append(b.closers, pool.Close)
	return pool, nil
}

// store opens the member store selected by STORE_BACKEND. A new store is
// seeded with the sample members; existing members are never overwritten.
func (b *backends) store(ctx context.Context) (*store.Store, error) {
	seed := store.ProfilesFromSeed(b.cfg.Seed, b.clock.Now())

	var backend store.Backend
	switch b.cfg.Store.Backend {
	case "", "file":
		fb, err := store.NewFileBackend(ctx, b.cfg.Store.Path, seed)
		if err != nil {
			return nil, err
		}
		b.log.Infow("using file member store", "path", fb.Path())
		backend = fb

	case "postgres":
		pool, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewMemberRepository(pool)
		if err := repo.Seed(ctx, seed); err != nil {
			return nil, fmt.Errorf("seeding members: %w", err)
		}
		b.log.Infow("using PostgreSQL member store")
		backend = repo

	case "mariadb":
		if b.cfg.Store.MariaDBDSN == "" {
			return nil, errors.New("MARIADB_DSN environment variable is required")
		}
		pool, err := mariadb.NewPool(ctx, b.cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to open MariaDB: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		repo := mariadb.NewMemberRepository(pool)
		if err := repo.Seed(ctx, seed); err != nil {
			return nil, fmt.Errorf("seeding members: %w", err)
		}
		b.log.Infow("using MariaDB member store")
		backend = repo

	default:
		return nil, fmt.Errorf("unknown store backend %q (want file, postgres or mariadb)", b.cfg.Store.Backend)
	}

	s := store.New(backend, b.clock, b.log)
	b.closers = append(b.closers, s.Close)
	return s, nil
}

// gallerySource returns the snapshot source selected by GALLERY_SOURCE.
func (b *backends) gallerySource(ctx context.Context) (gallery.Source, error) {
	switch b.cfg.Gallery.Source {
	case "", "file":
		return gallery.FileSource{Path: b.cfg.Gallery.Path}, nil
	case "postgres":
		pool, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewGallerySource(pool), nil
	default:
		return nil, fmt.Errorf("unknown gallery source %q (want file or postgres)", b.cfg.Gallery.Source)
	}
}

// Close closes in reverse order of opening.
func (b *backends) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	b.closers = nil
	return err
}

// commandTimeout bounds one-shot CLI commands.
const commandTimeout = 2 * time.Minute
