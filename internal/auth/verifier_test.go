package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"orggate/internal/audit"
)

func testSink(t *testing.T) *audit.Log {
	t.Helper()
	l, err := audit.Open(":memory:")
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func seedUserForTest(t *testing.T, store Store, email, password string) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &User{Email: email, Name: "Test User", Role: "viewer", Team: "analytics", UID: "tuser", PasswordHash: hash}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return u
}

func TestVerifySuccessResetsCounter(t *testing.T) {
	store := NewMemoryStore()
	sink := testSink(t)
	v := NewVerifier(store, sink)
	seedUserForTest(t, store, "demo@example.com", "letmein-123")
	ctx := context.Background()

	if _, err := v.Verify(ctx, "demo@example.com", "wrong"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if got := v.FailureCount("demo@example.com"); got != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", got)
	}

	user, err := v.Verify(ctx, "Demo@Example.com", "letmein-123")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.Email != "demo@example.com" {
		t.Fatalf("unexpected user: %s", user.Email)
	}
	if got := v.FailureCount("demo@example.com"); got != 0 {
		t.Fatalf("expected counter reset, got %d", got)
	}
}

func TestThreeFailuresLockTheAccount(t *testing.T) {
	store := NewMemoryStore()
	sink := testSink(t)
	v := NewVerifier(store, sink)
	seedUserForTest(t, store, "demo@example.com", "letmein-123")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(ctx, "demo@example.com", "wrong"); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("attempt %d: expected ErrAuthenticationFailed, got %v", i+1, err)
		}
	}

	// Correct secret, but the account is locked now.
	if _, err := v.Verify(ctx, "demo@example.com", "letmein-123"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	failures, err := sink.Query(ctx, audit.Filter{Action: audit.ActionLogin})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	failed := 0
	for _, e := range failures {
		if e.Outcome == audit.OutcomeFailure {
			failed++
		}
	}
	if failed < 3 {
		t.Fatalf("expected at least 3 failure entries, got %d", failed)
	}
	security, err := sink.Query(ctx, audit.Filter{Action: audit.ActionSecurity})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(security) != 1 || security[0].Detail["event"] != "lockout" {
		t.Fatalf("expected one lockout entry, got %+v", security)
	}
}

func TestUnknownAndWrongSecretLookAlike(t *testing.T) {
	store := NewMemoryStore()
	sink := testSink(t)
	v := NewVerifier(store, sink)
	seedUserForTest(t, store, "demo@example.com", "letmein-123")
	ctx := context.Background()

	_, errUnknown := v.Verify(ctx, "ghost@example.com", "anything")
	_, errWrong := v.Verify(ctx, "demo@example.com", "wrong")
	if !errors.Is(errUnknown, ErrAuthenticationFailed) || !errors.Is(errWrong, ErrAuthenticationFailed) {
		t.Fatalf("expected identical generic failures, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("error text differs: %q vs %q", errUnknown, errWrong)
	}
}

func TestLockExpiresWhenDurationConfigured(t *testing.T) {
	store := NewMemoryStore()
	sink := testSink(t)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := NewVerifier(store, sink,
		WithLockoutDuration(30*time.Minute),
		WithClock(func() time.Time { return clock }))
	seedUserForTest(t, store, "demo@example.com", "letmein-123")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = v.Verify(ctx, "demo@example.com", "wrong")
	}
	if _, err := v.Verify(ctx, "demo@example.com", "letmein-123"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected lock, got %v", err)
	}

	clock = clock.Add(31 * time.Minute)
	user, err := v.Verify(ctx, "demo@example.com", "letmein-123")
	if err != nil {
		t.Fatalf("expected lock to expire: %v", err)
	}
	if user.Status != StatusActive {
		t.Fatalf("expected reactivated account, got %s", user.Status)
	}
}

func TestRollingWindowForgetsOldFailures(t *testing.T) {
	store := NewMemoryStore()
	sink := testSink(t)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := NewVerifier(store, sink,
		WithAttemptWindow(10*time.Minute),
		WithClock(func() time.Time { return clock }))
	seedUserForTest(t, store, "demo@example.com", "letmein-123")
	ctx := context.Background()

	_, _ = v.Verify(ctx, "demo@example.com", "wrong")
	_, _ = v.Verify(ctx, "demo@example.com", "wrong")
	clock = clock.Add(11 * time.Minute)
	if _, err := v.Verify(ctx, "demo@example.com", "wrong"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected generic failure, got %v", err)
	}

	// Only one failure inside the window, so the account stays open.
	user, err := store.FindByEmail(ctx, "demo@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if user.Status != StatusActive {
		t.Fatalf("expected active account, got %s", user.Status)
	}
}

func TestUnlockReactivates(t *testing.T) {
	store := NewMemoryStore()
	sink := testSink(t)
	v := NewVerifier(store, sink)
	seedUserForTest(t, store, "demo@example.com", "letmein-123")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = v.Verify(ctx, "demo@example.com", "wrong")
	}
	if err := v.Unlock(ctx, "admin@example.com", "demo@example.com"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := v.Verify(ctx, "demo@example.com", "letmein-123"); err != nil {
		t.Fatalf("expected login after unlock: %v", err)
	}
}

func TestAuditOutageFailsTheLogin(t *testing.T) {
	store := NewMemoryStore()
	sink := testSink(t)
	v := NewVerifier(store, sink)
	seedUserForTest(t, store, "demo@example.com", "letmein-123")

	_ = sink.Close()
	_, err := v.Verify(context.Background(), "demo@example.com", "wrong")
	if !errors.Is(err, audit.ErrWriteFailure) {
		t.Fatalf("expected audit.ErrWriteFailure, got %v", err)
	}
}
