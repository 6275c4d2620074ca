package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/kvcomments/internal/store"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryGet(ctx context.Context, db executor, namespace, key string) (*store.Entry, error) {
	row := db.QueryRowContext(ctx,
		`SELECT value, revision FROM kv_entries WHERE namespace = $1 AND key = $2`,
		namespace, key)
	e, err := scanEntry(row, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return e, nil
}

func queryPut(ctx context.Context, db executor, namespace, key string, value []byte) (store.Revision, error) {
	row := db.QueryRowContext(ctx, `
		INSERT INTO kv_entries (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = EXCLUDED.value, revision = nextval('kv_revision_seq'), updated_at = now()
		RETURNING revision`,
		namespace, key, value)
	rev, err := scanRevision(row)
	if err != nil {
		return "", fmt.Errorf("kv put %s: %w", key, err)
	}
	return rev, nil
}

func queryCreate(ctx context.Context, db executor, namespace, key string, value []byte) (store.Revision, error) {
	row := db.QueryRowContext(ctx, `
		INSERT INTO kv_entries (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO NOTHING
		RETURNING revision`,
		namespace, key, value)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrKeyExists
	}
	if err != nil {
		return "", fmt.Errorf("kv create %s: %w", key, err)
	}
	return rev, nil
}

func queryUpdate(ctx context.Context, db executor, namespace, key string, value []byte, rev store.Revision) (store.Revision, error) {
	last, err := parseRevision(rev)
	if err != nil {
		return "", store.ErrRevisionMismatch
	}
	row := db.QueryRowContext(ctx, `
		UPDATE kv_entries
		SET value = $3, revision = nextval('kv_revision_seq'), updated_at = now()
		WHERE namespace = $1 AND key = $2 AND revision = $4
		RETURNING revision`,
		namespace, key, value, last)
	next, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrRevisionMismatch
	}
	if err != nil {
		return "", fmt.Errorf("kv update %s: %w", key, err)
	}
	return next, nil
}

func queryDelete(ctx context.Context, db executor, namespace, key string) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`,
		namespace, key)
	if err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	if n == 0 {
		return store.ErrKeyNotFound
	}
	return nil
}
