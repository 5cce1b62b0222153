// Package memory is an in-process store with the same upsert semantics as
// the SQL schema. It backs tests and the "memory" driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/testsets/internal/core"
)

// Fault decides whether the n-th Upsert call (1-based) fails.
// Returning nil lets the call proceed.
type Fault func(call int, req core.UpsertRequest) error

// uniqueKeys mirrors the UNIQUE constraints of the SQL schema.
var uniqueKeys = map[string][]string{
	core.KindQuestion.Table(): core.KindQuestion.ConflictTarget(),
	core.KindChoice.Table():   core.KindChoice.ConflictTarget(),
}

type table struct {
	rows   map[int64]map[string]any
	nextID int64
}

// Store keeps rows per table in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	tables map[string]*table
	calls  int
	fault  Fault
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// InjectFault installs f; nil removes any fault.
func (s *Store) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// Calls returns how many times Upsert has been called.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Count returns the number of rows in table.
func (s *Store) Count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

// Rows returns copies of the rows of table ordered by id.
func (s *Store) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]map[string]any, len(ids))
	for i, id := range ids {
		out[i] = clone(t.rows[id])
	}
	return out
}

// Upsert writes one row. With a conflict target an existing row with equal
// target values is updated; without one the row is matched by id, if any.
func (s *Store) Upsert(ctx context.Context, req core.UpsertRequest) (core.Persisted, error) {
	if err := ctx.Err(); err != nil {
		return core.Persisted{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.fault != nil {
		if err := s.fault(s.calls, req); err != nil {
			return core.Persisted{}, err
		}
	}
	if req.Table == "" {
		return core.Persisted{}, fmt.Errorf("upsert: empty table name")
	}
	if len(req.Fields) == 0 && len(req.ConflictTarget) > 0 {
		return core.Persisted{}, fmt.Errorf("upsert %s: no fields", req.Table)
	}

	t := s.table(req.Table)
	target := req.ConflictTarget
	if len(target) == 0 {
		if _, ok := req.Value("id"); ok {
			target = []string{"id"}
		}
	}

	if len(target) > 0 {
		if id, ok := t.find(req, target); ok {
			row := t.rows[id]
			for _, f := range req.Fields {
				if f.Column == "id" {
					continue
				}
				row[f.Column] = f.Value
			}
			return core.Persisted{ID: id, Fields: clone(row)}, nil
		}
	}

	if cols, ok := uniqueKeys[req.Table]; ok {
		if _, dup := t.find(req, cols); dup {
			return core.Persisted{}, fmt.Errorf("duplicate key value violates unique constraint on %s (%s)",
				req.Table, strings.Join(cols, ", "))
		}
	}

	row := make(map[string]any, len(req.Fields)+1)
	for _, f := range req.Fields {
		row[f.Column] = f.Value
	}
	id, err := t.assignID(row)
	if err != nil {
		return core.Persisted{}, fmt.Errorf("%s: %w", req.Table, err)
	}
	row["id"] = id
	t.rows[id] = row
	return core.Persisted{ID: id, Fields: clone(row)}, nil
}

func (s *Store) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: make(map[int64]map[string]any), nextID: 1}
		s.tables[name] = t
	}
	return t
}

// find returns the id of the row whose cols equal those of req.
func (t *table) find(req core.UpsertRequest, cols []string) (int64, bool) {
	want := make([]any, len(cols))
	for i, c := range cols {
		v, ok := req.Value(c)
		if !ok {
			return 0, false
		}
		want[i] = normalize(v)
	}

next:
	for id, row := range t.rows {
		for i, c := range cols {
			if normalize(row[c]) != want[i] {
				continue next
			}
		}
		return id, true
	}
	return 0, false
}

func (t *table) assignID(row map[string]any) (int64, error) {
	v, ok := row["id"]
	if !ok {
		id := t.nextID
		t.nextID++
		return id, nil
	}
	id, ok := normalize(v).(int64)
	if !ok {
		return 0, fmt.Errorf("id must be an integer, got %T", v)
	}
	if id >= t.nextID {
		t.nextID = id + 1
	}
	return id, nil
}

// normalize makes integer values of different widths comparable.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return v
	}
}

func clone(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
