/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kv

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE SEQUENCE IF NOT EXISTS booster_revision_seq;

CREATE TABLE IF NOT EXISTS booster_values (
	key      TEXT PRIMARY KEY,
	value    BYTEA NOT NULL,
	revision BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS booster_sets (
	key    TEXT NOT NULL,
	member TEXT NOT NULL,
	PRIMARY KEY (key, member)
);
`

// PostgresStore implements Store on two PostgreSQL tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore dials the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}

	poolConfig.ConnConfig.RuntimeParams["application_name"] = "snmp-booster"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: failed to initialize pool: %w", ErrUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: postgres: ping: %w", ErrUnavailable, err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()

		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func pgError(op, key string, err error) error {
	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)

	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, op, key, err)
	}

	return fmt.Errorf("failed to %s key %s: %w", op, key, err)
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := p.GetEntry(ctx, key)
	if err != nil {
		return nil, false, err
	}

	return entry.Value, entry.Found, nil
}

func (p *PostgresStore) GetEntry(ctx context.Context, key string) (Entry, error) {
	var (
		value    []byte
		revision int64
	)

	err := p.pool.QueryRow(ctx,
		`SELECT value, revision FROM booster_values WHERE key = $1`, key).Scan(&value, &revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, nil
	}

	if err != nil {
		return Entry{}, pgError("get", key, err)
	}

	return Entry{Value: value, Revision: uint64(revision), Found: true}, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errEmptyKey
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO booster_values (key, value, revision)
		VALUES ($1, $2, nextval('booster_revision_seq'))
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, revision = EXCLUDED.revision`, key, value)
	if err != nil {
		return pgError("put", key, err)
	}

	return nil
}

func (p *PostgresStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if key == "" {
		return 0, errEmptyKey
	}

	var revision int64

	err := p.pool.QueryRow(ctx, `
		INSERT INTO booster_values (key, value, revision)
		VALUES ($1, $2, nextval('booster_revision_seq'))
		ON CONFLICT (key) DO NOTHING
		RETURNING revision`, key, value).Scan(&revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrKeyExists
	}

	if err != nil {
		return 0, pgError("create", key, err)
	}

	return uint64(revision), nil
}

func (p *PostgresStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if key == "" {
		return 0, errEmptyKey
	}

	var next int64

	err := p.pool.QueryRow(ctx, `
		UPDATE booster_values
		SET value = $2, revision = nextval('booster_revision_seq')
		WHERE key = $1 AND revision = $3
		RETURNING revision`, key, value, int64(revision)).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrCASMismatch
	}

	if err != nil {
		return 0, pgError("update", key, err)
	}

	return uint64(next), nil
}

func (p *PostgresStore) SetAdd(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return errEmptyKey
	}

	if len(members) == 0 {
		return nil
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO booster_sets (key, member)
		SELECT $1, m FROM unnest($2::text[]) AS m
		ON CONFLICT DO NOTHING`, key, members)
	if err != nil {
		return pgError("sadd", key, err)
	}

	return nil
}

func (p *PostgresStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT member FROM booster_sets WHERE key = $1 ORDER BY member`, key)
	if err != nil {
		return nil, pgError("smembers", key, err)
	}

	members, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pgError("smembers", key, err)
	}

	if members == nil {
		members = []string{}
	}

	return members, nil
}

func (p *PostgresStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT key FROM booster_values WHERE key LIKE $1 ESCAPE '\'
		UNION
		SELECT DISTINCT key FROM booster_sets WHERE key LIKE $1 ESCAPE '\'`, likePattern(pattern))
	if err != nil {
		return nil, pgError("scan", pattern, err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pgError("scan", pattern, err)
	}

	return sortedUnique(keys), nil
}

func (p *PostgresStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	var removed int

	err := p.pool.QueryRow(ctx, `
		WITH v AS (
			DELETE FROM booster_values WHERE key = ANY($1) RETURNING key
		), s AS (
			DELETE FROM booster_sets WHERE key = ANY($1) RETURNING key
		)
		SELECT count(*) FROM (SELECT key FROM v UNION SELECT key FROM s) AS gone`, keys).Scan(&removed)
	if err != nil {
		return 0, pgError("delete", fmt.Sprint(keys), err)
	}

	return removed, nil
}

func (p *PostgresStore) Flush(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE booster_values, booster_sets`); err != nil {
		return pgError("flush", "*", err)
	}

	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()

	return nil
}
