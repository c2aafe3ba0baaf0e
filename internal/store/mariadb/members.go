package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// MemberRepository is a store.Backend on the members table.
type MemberRepository struct {
	pool *Pool
}

var _ store.Backend = (*MemberRepository)(nil)

func NewMemberRepository(pool *Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

func (r *MemberRepository) Get(ctx context.Context, key string) (*store.Profile, error) {
	var p store.Profile
	var age string
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT full_name, age, phone_number, last_attendance FROM members WHERE identity_key = ?
	`, key).Scan(&p.FullName, &age, &p.PhoneNumber, &p.LastAttendance.Time)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	p.Age = store.Age(age)
	return &p, nil
}

func (r *MemberRepository) Add(ctx context.Context, key string, p store.Profile) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO members (identity_key, full_name, age, phone_number, last_attendance)
		VALUES (?, ?, ?, ?, ?)
	`, key, p.FullName, string(p.Age), p.PhoneNumber, p.LastAttendance.Time)

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *MemberRepository) Touch(ctx context.Context, key string, at store.Timestamp) error {
	res, err := r.pool.db.ExecContext(ctx, `
		UPDATE members SET last_attendance = ? WHERE identity_key = ?
	`, at.Time, key)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *MemberRepository) List(ctx context.Context) ([]store.Member, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT identity_key, full_name, age, phone_number, last_attendance FROM members ORDER BY identity_key
	`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []store.Member
	for rows.Next() {
		var m store.Member
		var age string
		if err := rows.Scan(&m.Key, &m.FullName, &age, &m.PhoneNumber, &m.LastAttendance.Time); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Age = store.Age(age)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

// Seed inserts profiles whose keys are not taken yet.
func (r *MemberRepository) Seed(ctx context.Context, profiles map[string]store.Profile) error {
	for key, p := range profiles {
		if err := r.Add(ctx, key, p); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return err
		}
	}
	return nil
}

// Close is a no-op; the pool is closed by its owner.
func (r *MemberRepository) Close() error {
	return nil
}
