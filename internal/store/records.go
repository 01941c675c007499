package store

import (
	"context"
	"database/sql"
	"fmt"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/dotcommander/kvsh/internal/models"
)

// Checksum returns the hex xxhash64 digest stored alongside a value.
func Checksum(value string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(value))
}

const recordColumns = `ns, key, value, checksum, created_at, updated_at`

// cacheKey scopes a cached record to its namespace. NUL cannot appear in a
// namespace name.
func cacheKey(ns, key string) string {
	return ns + "\x00" + key
}

// Put inserts or replaces the value for key in ns, creating ns on first use.
// created reports whether the key was new.
func (a *Adapter) Put(ctx context.Context, ns, key, value string) (created bool, err error) {
	if a.Closed() {
		return false, &models.ConnectionError{Path: a.path, Err: ErrClosed}
	}
	if err := ValidateNamespace(ns); err != nil {
		return false, &models.QueryError{Op: "put", Err: err}
	}

	now := a.now().UTC()
	err = Transact(ctx, a.db, func(tx *sql.Tx) error {
		if _, err := execute(ctx, tx, `INSERT OR IGNORE INTO namespaces (name, created_at) VALUES (?, ?)`, ns, now); err != nil {
			return err
		}

		res, err := execute(ctx, tx, `SELECT 1 FROM records WHERE ns = ? AND key = ?`, ns, key)
		if err != nil {
			return err
		}
		created = len(res.Rows) == 0

		_, err = execute(ctx, tx, `
			INSERT INTO records (ns, key, value, checksum, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(ns, key) DO UPDATE SET
				value = excluded.value,
				checksum = excluded.checksum,
				updated_at = excluded.updated_at
		`, ns, key, value, Checksum(value), now, now)
		return err
	})
	if a.cache != nil {
		a.cache.Delete(cacheKey(ns, key))
	}
	if err != nil {
		return false, classify(a.path, "put", err)
	}
	return created, nil
}

// Get returns the record for key in ns, or ErrNotFound.
func (a *Adapter) Get(ctx context.Context, ns, key string) (models.Record, error) {
	if a.Closed() {
		return models.Record{}, &models.ConnectionError{Path: a.path, Err: ErrClosed}
	}
	if a.cache != nil {
		if rec, ok := a.cache.Get(cacheKey(ns, key)); ok {
			return rec, nil
		}
	}

	res, err := a.run(ctx, "get", false, `SELECT `+recordColumns+` FROM records WHERE ns = ? AND key = ?`, ns, key)
	if err != nil {
		return models.Record{}, err
	}
	if len(res.Rows) == 0 {
		return models.Record{}, ErrNotFound
	}

	rec := recordFromRow(res.Rows[0])
	if a.cache != nil {
		a.cache.Set(cacheKey(ns, key), rec)
	}
	return rec, nil
}

// Exists reports whether key has a record in ns.
func (a *Adapter) Exists(ctx context.Context, ns, key string) (bool, error) {
	res, err := a.run(ctx, "exists", false, `SELECT EXISTS(SELECT 1 FROM records WHERE ns = ? AND key = ?)`, ns, key)
	if err != nil {
		return false, err
	}
	return len(res.Rows) == 1 && asInt64(res.Rows[0][0]) == 1, nil
}

// Delete removes key from ns. It returns ErrNotFound when there was nothing
// to remove.
func (a *Adapter) Delete(ctx context.Context, ns, key string) error {
	res, err := a.run(ctx, "delete", false, `DELETE FROM records WHERE ns = ? AND key = ?`, ns, key)
	if a.cache != nil {
		a.cache.Delete(cacheKey(ns, key))
	}
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns up to limit records in ns whose key starts with prefix, in key
// order. An empty prefix lists everything; limit <= 0 means no limit.
func (a *Adapter) List(ctx context.Context, ns, prefix string, limit int) ([]models.Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT is unbounded
	}
	res, err := a.run(ctx, "list", false, `
		SELECT `+recordColumns+`
		FROM records
		WHERE ns = ? AND substr(key, 1, ?) = ?
		ORDER BY key
		LIMIT ?
	`, ns, utf8.RuneCountInString(prefix), prefix, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.Record, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, recordFromRow(row))
	}
	return out, nil
}

// Count returns the number of records in ns whose key starts with prefix.
func (a *Adapter) Count(ctx context.Context, ns, prefix string) (int64, error) {
	res, err := a.run(ctx, "count", false, `SELECT COUNT(*) FROM records WHERE ns = ? AND substr(key, 1, ?) = ?`,
		ns, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return 0, err
	}
	return asInt64(res.Rows[0][0]), nil
}

func recordFromRow(row []any) models.Record {
	return models.Record{
		Namespace: asString(row[0]),
		Key:       asString(row[1]),
		Value:     asString(row[2]),
		Checksum:  asString(row[3]),
		CreatedAt: asTime(row[4]),
		UpdatedAt: asTime(row[5]),
	}
}
