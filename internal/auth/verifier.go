package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"orggate/internal/audit"
	"orggate/internal/obs"
)

const (
	defaultMaxAttempts   = 3
	defaultAttemptWindow = 15 * time.Minute
)

// Verifier validates login attempts against the user store. It owns the
// per-identifier failed-attempt counters; lock state itself is persisted
// through the store so it survives restarts.
type Verifier struct {
	store       Store
	sink        audit.Sink
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time

	onSecurity func(event, detail string)

	mu       sync.Mutex
	failures map[string][]time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithMaxAttempts sets the consecutive-failure threshold that locks an
// account.
func WithMaxAttempts(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.maxAttempts = n
		}
	}
}

// WithAttemptWindow sets the rolling window failures are counted in.
func WithAttemptWindow(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.window = d
		}
	}
}

// WithLockoutDuration makes locks expire after d. Zero keeps the default:
// locked until explicit unlock.
func WithLockoutDuration(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.lockout = d }
}

// WithSecurityHook receives out-of-band security events (lockouts) in
// addition to their audit entries.
func WithSecurityHook(fn func(event, detail string)) VerifierOption {
	return func(v *Verifier) { v.onSecurity = fn }
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier builds a Verifier. The audit sink is mandatory: credential
// decisions without an audit trail are not made.
func NewVerifier(store Store, sink audit.Sink, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		store:       store,
		sink:        sink,
		maxAttempts: defaultMaxAttempts,
		window:      defaultAttemptWindow,
		now:         time.Now,
		failures:    make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks a presented secret. Unknown identifier, wrong secret, and
// locked/disabled account all cost comparable time and, except for the
// lock, return the same error. Every rejection is audited; if the audit
// append fails, that failure is returned instead and the attempt counts
// for nothing.
func (v *Verifier) Verify(ctx context.Context, identifier, secret string) (*User, error) {
	identifier = normalizeEmail(identifier)

	user, err := v.store.FindByEmail(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		burnPassword(secret)
		return nil, v.reject(ctx, identifier, "unknown identifier", ErrAuthenticationFailed)
	}

	now := v.now()
	if user.Status == StatusLocked && !user.Locked(now, v.lockout) {
		// Lock duration elapsed; reopen the account before checking.
		if err := v.store.SetStatus(ctx, user.ID, StatusActive, time.Time{}); err != nil {
			return nil, err
		}
		v.resetFailures(identifier)
		user.Status = StatusActive
	}

	if user.Status != StatusActive {
		burnPassword(secret)
		if user.Status == StatusLocked {
			return nil, v.reject(ctx, identifier, "account locked", ErrAccountLocked)
		}
		return nil, v.reject(ctx, identifier, "account disabled", ErrAuthenticationFailed)
	}

	if err := VerifyPassword(user.PasswordHash, secret); err != nil {
		count := v.recordFailure(identifier)
		if auditErr := v.auditFailure(ctx, identifier, "wrong secret", count); auditErr != nil {
			return nil, auditErr
		}
		if count >= v.maxAttempts {
			if lockErr := v.lock(ctx, user, identifier, count); lockErr != nil {
				return nil, lockErr
			}
		}
		return nil, ErrAuthenticationFailed
	}

	v.resetFailures(identifier)
	return user, nil
}

// FailureCount reports the failures currently inside the rolling window
// for an identifier.
func (v *Verifier) FailureCount(identifier string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.prune(normalizeEmail(identifier)))
}

// Unlock reactivates a locked account and clears its counters. This is
// the explicit administrative unlock; it is itself audited.
func (v *Verifier) Unlock(ctx context.Context, actor, identifier string) error {
	identifier = normalizeEmail(identifier)
	user, err := v.store.FindByEmail(ctx, identifier)
	if err != nil {
		return err
	}
	if err := v.store.SetStatus(ctx, user.ID, StatusActive, time.Time{}); err != nil {
		return err
	}
	v.resetFailures(identifier)
	return v.sink.Append(ctx, &audit.Entry{
		Actor:   actor,
		Action:  audit.ActionSecurity,
		Target:  "account:" + identifier,
		Outcome: audit.OutcomeSuccess,
		Detail:  map[string]string{"event": "unlock"},
	})
}

func (v *Verifier) reject(ctx context.Context, identifier, reason string, cause error) error {
	count := v.recordFailure(identifier)
	if err := v.auditFailure(ctx, identifier, reason, count); err != nil {
		return err
	}
	return cause
}

func (v *Verifier) auditFailure(ctx context.Context, identifier, reason string, count int) error {
	obs.LoginFailures.Inc()
	return v.sink.Append(ctx, &audit.Entry{
		Actor:   identifier,
		Action:  audit.ActionLogin,
		Target:  "session",
		Outcome: audit.OutcomeFailure,
		Detail: map[string]string{
			"reason":   reason,
			"attempts": strconv.Itoa(count),
		},
	})
}

func (v *Verifier) lock(ctx context.Context, user *User, identifier string, count int) error {
	if err := v.store.SetStatus(ctx, user.ID, StatusLocked, v.now().UTC()); err != nil {
		return err
	}
	obs.AccountLockouts.Inc()
	if v.onSecurity != nil {
		v.onSecurity("account_lockout", identifier)
	}
	return v.sink.Append(ctx, &audit.Entry{
		Actor:   identifier,
		Action:  audit.ActionSecurity,
		Target:  "account:" + identifier,
		Outcome: audit.OutcomeFailure,
		Detail: map[string]string{
			"event":    "lockout",
			"attempts": strconv.Itoa(count),
			"window":   v.window.String(),
		},
	})
}

// recordFailure appends a failure and returns the in-window count.
// Atomic per identifier: concurrent logins cannot lose an increment.
func (v *Verifier) recordFailure(identifier string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	recent := append(v.prune(identifier), v.now())
	v.failures[identifier] = recent
	return len(recent)
}

func (v *Verifier) resetFailures(identifier string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.failures, identifier)
}

// prune drops failures older than the window. Caller holds v.mu.
func (v *Verifier) prune(identifier string) []time.Time {
	cutoff := v.now().Add(-v.window)
	recent := v.failures[identifier][:0:0]
	for _, ts := range v.failures[identifier] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) == 0 {
		delete(v.failures, identifier)
		return nil
	}
	v.failures[identifier] = recent
	return recent
}
