package auth

import (
	"context"
	"database/sql"
	"time"

	"orggate/internal/ids"
	"orggate/internal/policy"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Schema lives under
// migrations/ and is applied by cmd/migrate.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, email, name, password_hash, role, team, uid, status, locked_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	u.Email = normalizeEmail(u.Email)
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, name, password_hash, role, team, uid, status) values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), u.Team, u.UID, u.Status,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, normalizeEmail(email))
	return scanUser(row)
}

func (s *PGStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PGStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	return s.exec(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`,
		id, passwordHash)
}

func (s *PGStore) SetRole(ctx context.Context, id string, role policy.Role) error {
	return s.exec(ctx,
		`update users set role=$2, updated_at=now() where id=$1`,
		id, string(role))
}

func (s *PGStore) SetStatus(ctx context.Context, id, status string, lockedAt time.Time) error {
	var locked any
	if !lockedAt.IsZero() {
		locked = lockedAt
	}
	return s.exec(ctx,
		`update users set status=$2, locked_at=$3, updated_at=now() where id=$1`,
		id, status, locked)
}

func (s *PGStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*User, error) {
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

func scanUserRow(row rowScanner) (*User, error) {
	var (
		u        User
		role     string
		lockedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role,
		&u.Team, &u.UID, &u.Status, &lockedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = policy.Role(role)
	if lockedAt.Valid {
		u.LockedAt = lockedAt.Time
	}
	return &u, nil
}
