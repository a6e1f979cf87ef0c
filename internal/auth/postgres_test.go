package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "name", "password_hash", "role", "team", "uid",
		"status", "locked_at", "created_at", "updated_at",
	})
}

func TestPGStoreFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery("select .* from users where email=").
		WithArgs("demo@example.com").
		WillReturnRows(userRows().AddRow(
			"01ABC", "demo@example.com", "Demo User", "$2a$10$hash", "viewer",
			"analytics", "demo", StatusActive, nil, now, now,
		))

	user, err := store.FindByEmail(context.Background(), "Demo@Example.com ")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if user.ID != "01ABC" || user.Role != "viewer" || !user.LockedAt.IsZero() {
		t.Fatalf("unexpected user: %+v", user)
	}

	mock.ExpectQuery("select .* from users where email=").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	if _, err := store.FindByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreCreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), "new@example.com", "New User", "$2a$10$hash",
			"manager", "infra", "nuser", StatusActive).
		WillReturnResult(sqlmock.NewResult(1, 1))

	u := &User{Email: "New@Example.com", Name: "New User", PasswordHash: "$2a$10$hash",
		Role: "manager", Team: "infra", UID: "nuser"}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreSetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	lockedAt := time.Now().UTC()
	mock.ExpectExec("update users set status=").
		WithArgs("01ABC", StatusLocked, lockedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.SetStatus(context.Background(), "01ABC", StatusLocked, lockedAt); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	mock.ExpectExec("update users set status=").
		WithArgs("missing", StatusActive, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.SetStatus(context.Background(), "missing", StatusActive, time.Time{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
