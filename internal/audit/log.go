package audit

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"

	"orggate/internal/ids"
	"orggate/internal/obs"
)

// chainSeed anchors the hash chain for the first entry.
const chainSeed = "orggate-audit-genesis"

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	occurred_at INTEGER NOT NULL,
	actor       TEXT NOT NULL,
	action      TEXT NOT NULL,
	target      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail_json TEXT,
	corrects_id TEXT,
	prev_hash   TEXT NOT NULL,
	hash        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_occurred ON audit_log(occurred_at);
`

// Log is the append-only, hash-chained audit store backed by SQLite.
// Appends are serialized under a mutex so concurrent writers can never
// interleave partial entries or fork the chain.
type Log struct {
	db      *sql.DB
	retries int
	now     func() time.Time
	onAlarm func(error)

	mu       sync.Mutex
	lastHash string
}

// Option configures a Log.
type Option func(*Log)

// WithRetries bounds how many times a failed append is retried before it
// escalates to ErrWriteFailure.
func WithRetries(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.retries = n
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithAlarm sets the out-of-band failure hook. The audit log cannot log
// its own outage, so the alarm goes through a separate channel.
func WithAlarm(fn func(error)) Option {
	return func(l *Log) {
		if fn != nil {
			l.onAlarm = fn
		}
	}
}

// Open opens (or creates) the audit database at path. ":memory:" is
// accepted for tests. Synchronous FULL keeps the no-buffered-loss
// guarantee: an acknowledged append survives a crash.
func Open(path string, opts ...Option) (*Log, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// A single connection keeps SQLite writes strictly ordered.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	l := &Log{
		db:      db,
		retries: 3,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.loadLastHash(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) loadLastHash() error {
	row := l.db.QueryRow(`SELECT hash FROM audit_log ORDER BY seq DESC LIMIT 1`)
	var hash string
	switch err := row.Scan(&hash); err {
	case nil:
		l.lastHash = hash
	case sql.ErrNoRows:
		l.lastHash = chainSeed
	default:
		return fmt.Errorf("load audit chain head: %w", err)
	}
	return nil
}

// Append commits one entry. It fills in id, timestamp, and chain hashes,
// retries transient store errors a bounded number of times, and returns
// ErrWriteFailure once retries are exhausted; the caller must then abort
// the operation that wanted the record.
func (l *Log) Append(ctx context.Context, entry *Entry) error {
	if entry.Actor == "" {
		entry.Actor = ActorSystem
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = l.now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}

	detailJSON := ""
	if len(entry.Detail) > 0 {
		data, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("%w: marshal detail: %v", ErrWriteFailure, err)
		}
		detailJSON = string(data)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry.PrevHash = l.lastHash
	entry.Hash = chainHash(entry.PrevHash, entry, detailJSON)

	var lastErr error
	for attempt := 0; attempt < l.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		_, err := l.db.ExecContext(ctx, `
			INSERT INTO audit_log (id, occurred_at, actor, action, target, outcome, detail_json, corrects_id, prev_hash, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.OccurredAt.UnixNano(), entry.Actor, entry.Action,
			entry.Target, entry.Outcome, detailJSON, entry.CorrectsID,
			entry.PrevHash, entry.Hash,
		)
		if err == nil {
			l.lastHash = entry.Hash
			return nil
		}
		lastErr = err
	}

	err := fmt.Errorf("%w: %v", ErrWriteFailure, lastErr)
	l.raiseAlarm(err)
	return err
}

// AppendCorrection records a correction to a prior entry. The original is
// left untouched; the correction is an ordinary append that references it.
func (l *Log) AppendCorrection(ctx context.Context, originalID string, entry *Entry) error {
	if strings.TrimSpace(originalID) == "" {
		return fmt.Errorf("%w: correction requires the original entry id", ErrWriteFailure)
	}
	entry.Action = ActionCorrection
	entry.CorrectsID = originalID
	return l.Append(ctx, entry)
}

// raiseAlarm reports an audit outage through channels independent of the
// audit log: a metric, stderr, and the optional hook.
func (l *Log) raiseAlarm(err error) {
	obs.AuditWriteFailures.Inc()
	obs.Alarm().Println(`{"level":"critical","msg":"audit log unavailable","error":` + strconv.Quote(err.Error()) + `}`)
	if l.onAlarm != nil {
		l.onAlarm(err)
	}
}

// Query returns entries matching the filter in append order (timestamp
// ascending). Capability checks belong to the caller; the store itself is
// read-only beyond Append.
func (l *Log) Query(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, occurred_at, actor, action, target, outcome, detail_json, corrects_id, prev_hash, hash
	          FROM audit_log WHERE 1=1`
	args := []any{}

	if f.Actor != "" {
		query += " AND actor = ?"
		args = append(args, f.Actor)
	}
	if f.Action != "" {
		query += " AND action = ?"
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		query += " AND occurred_at <= ?"
		args = append(args, f.Until.UnixNano())
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			occurredAt int64
			detailJSON string
		)
		if err := rows.Scan(&e.ID, &occurredAt, &e.Actor, &e.Action, &e.Target,
			&e.Outcome, &detailJSON, &e.CorrectsID, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, occurredAt).UTC()
		if detailJSON != "" {
			if err := json.Unmarshal([]byte(detailJSON), &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Verify walks the whole chain and reports the id of the first entry whose
// hash does not match its recorded content, or "" if the chain is intact.
func (l *Log) Verify(ctx context.Context) (string, error) {
	entries, err := l.Query(ctx, Filter{})
	if err != nil {
		return "", err
	}
	prev := chainSeed
	for _, e := range entries {
		detailJSON := ""
		if len(e.Detail) > 0 {
			data, err := json.Marshal(e.Detail)
			if err != nil {
				return "", err
			}
			detailJSON = string(data)
		}
		if e.PrevHash != prev || chainHash(prev, &e, detailJSON) != e.Hash {
			return e.ID, nil
		}
		prev = e.Hash
	}
	return "", nil
}

// chainHash digests the previous hash plus the entry's content fields.
func chainHash(prevHash string, e *Entry, detailJSON string) string {
	hasher := blake3.New()
	for _, part := range []string{
		prevHash, e.ID, strconv.FormatInt(e.OccurredAt.UnixNano(), 10),
		e.Actor, e.Action, e.Target, e.Outcome, detailJSON, e.CorrectsID,
	} {
		hasher.Write([]byte(part))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
