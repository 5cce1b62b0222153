// Package sqlbuild renders single-row upsert statements for the SQL stores.
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/testsets/internal/core"
)

// Placeholder selects the bind parameter style of a dialect.
type Placeholder int

const (
	Dollar   Placeholder = iota // $1, $2 (PostgreSQL)
	Question                    // ?, ? (SQLite)
)

func (p Placeholder) render(n int) string {
	if p == Question {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// Upsert renders req as INSERT ... ON CONFLICT ... DO UPDATE ... RETURNING *.
//
// With a conflict target, a matching row is updated with every non-target
// column of req. Without one, the statement conflicts on "id" when the row
// carries an id and is a plain insert otherwise. A request with no fields and
// no conflict target inserts a row of column defaults.
func Upsert(req core.UpsertRequest, p Placeholder) (string, []any, error) {
	if req.Table == "" {
		return "", nil, fmt.Errorf("upsert: empty table name")
	}
	if len(req.Fields) == 0 {
		if len(req.ConflictTarget) > 0 {
			return "", nil, fmt.Errorf("upsert %s: no fields", req.Table)
		}
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", quote(req.Table)), nil, nil
	}

	target := req.ConflictTarget
	if len(target) == 0 {
		if _, ok := req.Value("id"); ok {
			target = []string{"id"}
		}
	}
	for _, col := range target {
		if _, ok := req.Value(col); !ok {
			return "", nil, fmt.Errorf("upsert %s: conflict column %q has no value", req.Table, col)
		}
	}

	cols := make([]string, len(req.Fields))
	binds := make([]string, len(req.Fields))
	args := make([]any, len(req.Fields))
	for i, f := range req.Fields {
		cols[i] = quote(f.Column)
		binds[i] = p.render(i + 1)
		args[i] = f.Value
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		quote(req.Table), strings.Join(cols, ", "), strings.Join(binds, ", "))

	if len(target) > 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s",
			quoteAll(target), strings.Join(updateSet(req, target), ", "))
	}
	b.WriteString(" RETURNING *")
	return b.String(), args, nil
}

// SyncSequence renders a PostgreSQL statement that moves the id identity
// sequence of table past the largest stored id. Rows inserted with an
// explicit id do not advance the sequence on their own.
func SyncSequence(table string) string {
	return fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %s), 1))",
		strings.ReplaceAll(quote(table), "'", "''"), quote(table))
}

// updateSet lists the assignments for DO UPDATE. The target columns and the
// id never change. When nothing else is left, the first target column is
// reassigned so that RETURNING still yields the existing row.
func updateSet(req core.UpsertRequest, target []string) []string {
	skip := make(map[string]bool, len(target)+1)
	for _, c := range target {
		skip[c] = true
	}
	skip["id"] = true

	var set []string
	for _, f := range req.Fields {
		if skip[f.Column] {
			continue
		}
		set = append(set, assign(f.Column))
	}
	if len(set) == 0 {
		set = append(set, assign(target[0]))
	}
	return set
}

func assign(col string) string {
	q := quote(col)
	return q + " = EXCLUDED." + q
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteAll(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return strings.Join(out, ", ")
}

// ToInt64 converts an id column value returned by a driver.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		var id int64
		if _, err := fmt.Sscan(string(n), &id); err != nil {
			return 0, fmt.Errorf("id %q: %w", n, err)
		}
		return id, nil
	case nil:
		return 0, fmt.Errorf("row has no id")
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}
