// Package querytest provides an in-memory query.Executor for tests.
package querytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/evcraddock/immo/internal/query"
)

// Memory serves queries from in-memory tables and records every call.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]query.Row
	errs   map[string]error
	calls  []query.Query
	// FailAfter makes the Nth call (1-based) and later calls on FailTable fail with FailErr.
	FailAfter int
	FailTable string
	FailErr   error
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{tables: map[string][]query.Row{}, errs: map[string]error{}}
}

// Put replaces the rows of table.
func (m *Memory) Put(table string, rows ...query.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = rows
}

// FailWith makes every query on table return err.
func (m *Memory) FailWith(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[table] = err
}

// Calls returns the queries executed so far.
func (m *Memory) Calls() []query.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]query.Query(nil), m.calls...)
}

// CallsTo counts the queries executed on table.
func (m *Memory) CallsTo(table string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Table == table {
			n++
		}
	}
	return n
}

// Execute implements query.Executor.
func (m *Memory) Execute(ctx context.Context, q query.Query) (*query.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, q)
	if err := m.errs[q.Table]; err != nil {
		return nil, err
	}
	if m.FailAfter > 0 && q.Table == m.FailTable {
		n := 0
		for _, c := range m.calls {
			if c.Table == q.Table {
				n++
			}
		}
		if n >= m.FailAfter {
			return nil, m.FailErr
		}
	}

	var matched []query.Row
	for _, row := range m.tables[q.Table] {
		if matches(row, q.Filters) {
			matched = append(matched, project(row, q.Columns))
		}
	}

	for i := len(q.Orders) - 1; i >= 0; i-- {
		o := q.Orders[i]
		sort.SliceStable(matched, func(a, b int) bool {
			if o.Descending {
				return less(matched[b][o.Column], matched[a][o.Column])
			}
			return less(matched[a][o.Column], matched[b][o.Column])
		})
	}

	total := -1
	if q.Count {
		total = len(matched)
	}

	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	return &query.Result{Rows: matched[start:end], Total: total}, nil
}

func matches(row query.Row, filters []query.Filter) bool {
	for _, f := range filters {
		v, ok := row[f.Column]
		if !ok || v == nil {
			return false
		}
		switch f.Op {
		case query.OpEq:
			if fmt.Sprint(v) != fmt.Sprint(f.Value) {
				return false
			}
		case query.OpGt:
			a, aok := number(v)
			b, bok := number(f.Value)
			if !aok || !bok || a <= b {
				return false
			}
		}
	}
	return true
}

func project(row query.Row, columns []string) query.Row {
	out := query.Row{}
	if len(columns) == 0 {
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func less(a, b any) bool {
	fa, aok := number(a)
	fb, bok := number(b)
	if aok && bok {
		return fa < fb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
