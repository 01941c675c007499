package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/dotcommander/kvsh/internal/models"
)

// DefaultNamespace holds records written before any namespace is selected.
const DefaultNamespace = "default"

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// ValidateNamespace checks a namespace name: 1 to 64 letters, digits or
// any of "_.:-".
func ValidateNamespace(name string) error {
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadNamespace, name)
	}
	return nil
}

// QualifiedKey names a record across namespaces. Keys in the default
// namespace are shown bare.
func QualifiedKey(ns, key string) string {
	if ns == DefaultNamespace {
		return key
	}
	return ns + "/" + key
}

// NamespaceInfo is one namespace with its record count.
type NamespaceInfo struct {
	Name    string `json:"name"`
	Records int64  `json:"records"`
}

// UseNamespace creates ns if it does not exist yet. created reports whether
// it was new.
func (a *Adapter) UseNamespace(ctx context.Context, ns string) (created bool, err error) {
	if err := ValidateNamespace(ns); err != nil {
		return false, &models.QueryError{Op: "use", Err: err}
	}
	res, err := a.run(ctx, "use", false, `INSERT OR IGNORE INTO namespaces (name, created_at) VALUES (?, ?)`, ns, a.now().UTC())
	if err != nil {
		return false, err
	}
	return res.RowsAffected == 1, nil
}

// Namespaces lists every namespace with its record count, by name.
func (a *Adapter) Namespaces(ctx context.Context) ([]NamespaceInfo, error) {
	res, err := a.run(ctx, "tables", false, `
		SELECT n.name, COUNT(r.key)
		FROM namespaces n
		LEFT JOIN records r ON r.ns = n.name
		GROUP BY n.name
		ORDER BY n.name
	`)
	if err != nil {
		return nil, err
	}

	out := make([]NamespaceInfo, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, NamespaceInfo{Name: asString(row[0]), Records: asInt64(row[1])})
	}
	return out, nil
}

// DropNamespace removes ns and every record in it, returning how many records
// went with it. It returns ErrNotFound when ns does not exist.
func (a *Adapter) DropNamespace(ctx context.Context, ns string) (removed int64, err error) {
	if a.Closed() {
		return 0, &models.ConnectionError{Path: a.path, Err: ErrClosed}
	}

	err = Transact(ctx, a.db, func(tx *sql.Tx) error {
		res, err := execute(ctx, tx, `SELECT COUNT(*) FROM records WHERE ns = ?`, ns)
		if err != nil {
			return err
		}
		removed = asInt64(res.Rows[0][0])

		// records cascade on the foreign key.
		res, err = execute(ctx, tx, `DELETE FROM namespaces WHERE name = ?`, ns)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, classify(a.path, "drop", err)
	}
	if a.cache != nil {
		a.cache.Purge()
	}
	return removed, nil
}
