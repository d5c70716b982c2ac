// Package sqlstore is a store.Store on PostgreSQL via jackc/pgx/v5.
//
// Entries live in one table (key, payload, expires_at). Expiry is compared
// against the store's clock, so expired rows are never returned but stay in
// the table until Sweep deletes them. Patterns are pre-filtered with LIKE on
// their literal prefix and matched client side.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unkn0wn-root/asidecache/expiration"
	"github.com/unkn0wn-root/asidecache/internal/util"
	"github.com/unkn0wn-root/asidecache/store"
)

const DefaultTable = "asidecache_entries"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var _ DB = (*pgxpool.Pool)(nil)

type Options struct {
	DB        DB
	Table     string           // "" => asidecache_entries; may be schema-qualified
	Clock     expiration.Clock // nil => expiration.SystemClock
	ClosePool bool             // close DB on Close when it is a *pgxpool.Pool
}

type Store struct {
	db        DB
	clock     expiration.Clock
	closePool bool
	q         queries
}

type queries struct {
	get, set, remove, exists, ttl, keys, removeMany, clear, sweep string
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.MultiSetter = (*Store)(nil)
	_ store.Sweeper     = (*Store)(nil)
)

func New(opts Options) (*Store, error) {
	if opts.DB == nil {
		return nil, ErrNilPool
	}
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	clock := opts.Clock
	if clock == nil {
		clock = expiration.SystemClock
	}
	return &Store{
		db:        opts.DB,
		clock:     clock,
		closePool: opts.ClosePool,
		q:         buildQueries(pgx.Identifier(strings.Split(table, ".")).Sanitize()),
	}, nil
}

func buildQueries(t string) queries {
	const live = `(expires_at IS NULL OR expires_at >= $2)`
	return queries{
		get:    `SELECT payload FROM ` + t + ` WHERE key = $1 AND ` + live,
		exists: `SELECT EXISTS (SELECT 1 FROM ` + t + ` WHERE key = $1 AND ` + live + `)`,
		ttl:    `SELECT expires_at FROM ` + t + ` WHERE key = $1 AND ` + live,
		set: `INSERT INTO ` + t + ` (key, payload, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		remove:     `DELETE FROM ` + t + ` WHERE key = $1`,
		keys:       `SELECT key FROM ` + t + ` WHERE key LIKE $1 ESCAPE '\' AND ` + live,
		removeMany: `DELETE FROM ` + t + ` WHERE key = ANY($1)`,
		clear:      `DELETE FROM ` + t,
		sweep:      `DELETE FROM ` + t + ` WHERE expires_at IS NOT NULL AND expires_at < $1`,
	}
}

func deadlineArg(deadline time.Time) any {
	if deadline.IsZero() {
		return nil
	}
	return deadline
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !util.ValidKey(key) {
		return nil, false, store.ErrInvalidKey
	}
	var payload []byte
	err := s.db.QueryRow(ctx, s.q.get, key, s.clock.Now()).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if payload == nil {
		payload = []byte{}
	}
	return payload, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	if value == nil {
		value = []byte{}
	}
	deadline := expiration.Deadline(s.clock.Now(), ttl)
	_, err := s.db.Exec(ctx, s.q.set, key, value, deadlineArg(deadline))
	return err
}

// SetMany upserts every entry without expiry in one pipelined batch.
func (s *Store) SetMany(ctx context.Context, entries []store.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, e := range entries {
		if !util.ValidKey(e.Key) {
			return store.ErrInvalidKey
		}
		v := e.Value
		if v == nil {
			v = []byte{}
		}
		b.Queue(s.q.set, e.Key, v, nil)
	}
	return s.db.SendBatch(ctx, b).Close()
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if !util.ValidKey(key) {
		return store.ErrInvalidKey
	}
	_, err := s.db.Exec(ctx, s.q.remove, key)
	return err
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if !util.ValidKey(key) {
		return false, store.ErrInvalidKey
	}
	var ok bool
	err := s.db.QueryRow(ctx, s.q.exists, key, s.clock.Now()).Scan(&ok)
	return ok, err
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !util.ValidKey(key) {
		return 0, store.ErrInvalidKey
	}
	now := s.clock.Now()
	var exp *time.Time
	err := s.db.QueryRow(ctx, s.q.ttl, key, now).Scan(&exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.TTLMissing, nil
	}
	if err != nil {
		return 0, err
	}
	if exp == nil {
		return store.TTLUnlimited, nil
	}
	d, _ := expiration.Remaining(now, *exp)
	return d, nil
}

// ScanKeys reads the matching keys fully before yielding, so the consumer
// may issue further queries without holding a pooled connection.
func (s *Store) ScanKeys(ctx context.Context, pattern string) iter.Seq2[string, error] {
	m, err := store.Compile(pattern)
	if err != nil {
		return store.ErrSeq(err)
	}
	return func(yield func(string, error) bool) {
		keys, err := s.matching(ctx, m.Prefix(), m.Match)
		if err != nil {
			yield("", err)
			return
		}
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (s *Store) matching(ctx context.Context, prefix string, match func(string) bool) ([]string, error) {
	rows, err := s.db.Query(ctx, s.q.keys, likePrefix(prefix), s.clock.Now())
	if err != nil {
		return nil, err
	}
	all, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	keys := all[:0]
	for _, k := range all {
		if match(k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// RemoveByPattern selects matching keys, then deletes them in one statement.
func (s *Store) RemoveByPattern(ctx context.Context, pattern string) error {
	m, err := store.Compile(pattern)
	if err != nil {
		return err
	}
	keys, err := s.matching(ctx, m.Prefix(), m.Match)
	if err != nil || len(keys) == 0 {
		return err
	}
	_, err = s.db.Exec(ctx, s.q.removeMany, keys)
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.Exec(ctx, s.q.clear)
	return err
}

// Sweep deletes rows whose deadline has passed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	tag, err := s.db.Exec(ctx, s.q.sweep, s.clock.Now())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Close(context.Context) error {
	if p, ok := s.db.(*pgxpool.Pool); ok && s.closePool {
		p.Close()
	}
	return nil
}

// likePrefix turns a literal prefix into a LIKE pattern with '\' as escape.
func likePrefix(prefix string) string {
	var b strings.Builder
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '%', '_', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(prefix[i])
	}
	b.WriteByte('%')
	return b.String()
}
