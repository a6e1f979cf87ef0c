package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"orggate/internal/audit"
	"orggate/internal/auth"
	"orggate/internal/ids"
	"orggate/internal/obs"
)

const (
	issuer     = "orggate"
	defaultTTL = 60 * time.Minute
)

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues, validates, and revokes signed session tokens. The
// signed token binds identity; validity (expiry, revocation, fingerprint)
// lives in the server-side table, which is why expiry here can be sliding
// while the token string never changes.
type Manager struct {
	secret        []byte
	sink          audit.Sink
	ttl           time.Duration
	sliding       bool
	singleSession bool
	now           func() time.Time
	onSecurity    func(event, detail string)

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSlidingExpiry resets expiry on each validated use. The default is
// absolute expiry from issuance.
func WithSlidingExpiry(sliding bool) Option {
	return func(m *Manager) { m.sliding = sliding }
}

// WithSingleSession revokes a user's prior sessions when a new one is
// issued.
func WithSingleSession(single bool) Option {
	return func(m *Manager) { m.singleSession = single }
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithSecurityHook receives out-of-band security events (fingerprint
// mismatches) in addition to their audit entries.
func WithSecurityHook(fn func(event, detail string)) Option {
	return func(m *Manager) { m.onSecurity = fn }
}

// NewManager builds a Manager. The secret signs tokens; the sink records
// every issuance, revocation, and suspected hijack.
func NewManager(secret string, sink audit.Sink, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session: signing secret is required")
	}
	m := &Manager{
		secret:    []byte(secret),
		sink:      sink,
		ttl:       defaultTTL,
		now:       time.Now,
		sessions:  make(map[string]*Session),
		byUser:    make(map[string]map[string]struct{}),
		stopSweep: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue creates a session for an authenticated user bound to the client
// fingerprint and returns the signed token. Under the single-session
// policy any prior sessions of the user are revoked first.
func (m *Manager) Issue(ctx context.Context, user *auth.User, fingerprint string) (string, *Session, error) {
	now := m.now().UTC()
	sess := &Session{
		ID:          ids.New(),
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		UID:         user.UID,
		Team:        user.Team,
		Fingerprint: fingerprint,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.ttl),
	}

	token, err := m.sign(sess, now)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	var displaced int
	if m.singleSession {
		displaced = m.revokeUserLocked(user.ID)
	}
	m.sessions[sess.ID] = sess
	if m.byUser[user.ID] == nil {
		m.byUser[user.ID] = make(map[string]struct{})
	}
	m.byUser[user.ID][sess.ID] = struct{}{}
	m.mu.Unlock()

	obs.SessionsIssued.Inc()
	entry := &audit.Entry{
		Actor:   user.Email,
		Action:  audit.ActionLogin,
		Target:  "session:" + sess.ID,
		Outcome: audit.OutcomeSuccess,
		Detail:  map[string]string{"expires_at": sess.ExpiresAt.Format(time.RFC3339)},
	}
	if displaced > 0 {
		entry.Detail["displaced_sessions"] = fmt.Sprintf("%d", displaced)
	}
	if err := m.sink.Append(ctx, entry); err != nil {
		// No audit record, no session.
		m.mu.Lock()
		m.dropLocked(sess.ID)
		m.mu.Unlock()
		return "", nil, err
	}
	return token, sess, nil
}

// Validate checks a presented token against the session table. Expiry is
// absolute from issuance unless sliding expiry is configured, in which
// case each validated use pushes it out by the TTL. A fingerprint
// mismatch is audited as a security event before the generic rejection is
// returned.
func (m *Manager) Validate(ctx context.Context, token, fingerprint string) (*Session, error) {
	cl, err := m.parse(token)
	if err != nil {
		return nil, ErrInvalid
	}

	m.mu.Lock()
	sess, ok := m.sessions[cl.ID]
	if !ok || sess.Revoked {
		m.mu.Unlock()
		return nil, ErrInvalid
	}
	now := m.now().UTC()
	if now.After(sess.ExpiresAt) {
		m.mu.Unlock()
		return nil, ErrInvalid
	}
	if sess.Fingerprint != fingerprint {
		actor := sess.Email
		m.mu.Unlock()
		if err := m.sink.Append(ctx, &audit.Entry{
			Actor:   actor,
			Action:  audit.ActionSecurity,
			Target:  "session:" + cl.ID,
			Outcome: audit.OutcomeFailure,
			Detail:  map[string]string{"event": "fingerprint_mismatch"},
		}); err != nil {
			return nil, err
		}
		if m.onSecurity != nil {
			m.onSecurity("fingerprint_mismatch", actor)
		}
		return nil, ErrInvalid
	}
	if m.sliding {
		sess.ExpiresAt = now.Add(m.ttl)
	}
	snapshot := *sess
	m.mu.Unlock()
	return &snapshot, nil
}

// Revoke marks the session behind a token as revoked. Idempotent: an
// already-revoked or unknown session is not an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	cl, err := m.parse(token)
	if err != nil {
		return ErrInvalid
	}

	m.mu.Lock()
	sess, ok := m.sessions[cl.ID]
	if !ok || sess.Revoked {
		m.mu.Unlock()
		return nil
	}
	sess.Revoked = true
	actor := sess.Email
	m.mu.Unlock()

	obs.SessionsRevoked.Inc()
	return m.sink.Append(ctx, &audit.Entry{
		Actor:   actor,
		Action:  audit.ActionLogout,
		Target:  "session:" + cl.ID,
		Outcome: audit.OutcomeSuccess,
	})
}

// StartSweeper runs the periodic purge of expired and revoked sessions
// until Stop is called.
func (m *Manager) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopSweep:
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// Stop terminates the sweeper goroutine.
func (m *Manager) Stop() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
}

// ActiveSessions reports the number of live sessions (tests, info).
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	now := m.now().UTC()
	for _, s := range m.sessions {
		if !s.Revoked && now.Before(s.ExpiresAt) {
			count++
		}
	}
	return count
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	for id, s := range m.sessions {
		if s.Revoked || now.After(s.ExpiresAt) {
			m.dropLocked(id)
		}
	}
}

// revokeUserLocked revokes all live sessions of a user. Caller holds m.mu.
func (m *Manager) revokeUserLocked(userID string) int {
	revoked := 0
	for id := range m.byUser[userID] {
		if s, ok := m.sessions[id]; ok && !s.Revoked {
			s.Revoked = true
			revoked++
			obs.SessionsRevoked.Inc()
		}
	}
	return revoked
}

// dropLocked removes a session from both indexes. Caller holds m.mu.
func (m *Manager) dropLocked(id string) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.sessions, id)
	if set, ok := m.byUser[s.UserID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m.byUser, s.UserID)
		}
	}
}

func (m *Manager) sign(sess *Session, now time.Time) (string, error) {
	cl := claims{
		Email: sess.Email,
		Role:  string(sess.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  sess.UserID,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       sess.ID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(m.secret)
}

func (m *Manager) parse(token string) (*claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalid
	}
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalid
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		return nil, ErrInvalid
	}
	cl, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || cl.ID == "" || cl.Subject == "" {
		return nil, ErrInvalid
	}
	return cl, nil
}
