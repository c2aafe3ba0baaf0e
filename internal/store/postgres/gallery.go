package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// GallerySource stores the gallery in the gallery_embeddings table, ordered by
// position so first-hit-wins matching sees the enrollment order.
type GallerySource struct {
	pool *Pool
}

var _ gallery.Source = (*GallerySource)(nil)

func NewGallerySource(pool *Pool) *GallerySource {
	return &GallerySource{pool: pool}
}

func (s *GallerySource) Describe() string {
	return "postgres:gallery_embeddings"
}

func (s *GallerySource) Load(ctx context.Context) (*gallery.Gallery, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT identity_key, embedding FROM gallery_embeddings ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var keys []string
	var embeddings [][]float64
	for rows.Next() {
		var key string
		var vec pgvector.Vector
		if err := rows.Scan(&key, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		keys = append(keys, key)
		embeddings = append(embeddings, toFloat64(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}

	return gallery.New(embeddings, keys)
}

// Replace swaps the stored gallery for g in one transaction. progress, if
// non-nil, is called once per inserted entry.
func (s *GallerySource) Replace(ctx context.Context, g *gallery.Gallery, progress func()) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM gallery_embeddings"); err != nil {
		return fmt.Errorf("clearing gallery: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gallery_embeddings (position, identity_key, embedding) VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < g.Len(); i++ {
		vec := pgvector.NewVector(toFloat32(g.Embedding(i)))
		if _, err := stmt.ExecContext(ctx, i, g.Key(i), vec); err != nil {
			return fmt.Errorf("inserting entry %d: %w", i, err)
		}
		if progress != nil {
			progress()
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing gallery: %w", err)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
