// Package query describes read-only table queries and the executors that run them.
package query

import "context"

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "eq"
	OpGt Op = "gt"
)

// Filter restricts rows on a single column.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Order sorts rows on a single column.
type Order struct {
	Column     string
	Descending bool
}

// Row is one result row keyed by column name.
type Row map[string]any

// Result holds the rows returned by an executor.
// Total is the server-reported row count for the unpaginated query, or -1 if unknown.
type Result struct {
	Rows  []Row
	Total int
}

// Executor runs a query against a table store.
type Executor interface {
	Execute(ctx context.Context, q Query) (*Result, error)
}

// Query is an immutable description of a table read.
// Builder methods return a modified copy.
type Query struct {
	Table   string
	Columns []string // empty = all columns
	Filters []Filter
	Orders  []Order
	Offset  int
	Limit   int // 0 = no limit
	Count   bool
}

// From starts a query on table.
func From(table string) Query {
	return Query{Table: table}
}

// Select projects the given columns.
func (q Query) Select(columns ...string) Query {
	q.Columns = append([]string(nil), columns...)
	return q
}

// Eq adds an equality filter.
func (q Query) Eq(column string, value any) Query {
	return q.where(column, OpEq, value)
}

// Gt adds a greater-than filter.
func (q Query) Gt(column string, value any) Query {
	return q.where(column, OpGt, value)
}

func (q Query) where(column string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Column: column, Op: op, Value: value})
	return q
}

// OrderBy appends a sort key.
func (q Query) OrderBy(column string, descending bool) Query {
	orders := make([]Order, len(q.Orders), len(q.Orders)+1)
	copy(orders, q.Orders)
	q.Orders = append(orders, Order{Column: column, Descending: descending})
	return q
}

// Range restricts the result to rows from..to inclusive, zero-based.
func (q Query) Range(from, to int) Query {
	q.Offset = from
	q.Limit = to - from + 1
	return q
}

// WithLimit caps the number of rows returned.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// WithCount asks the executor to report the total row count.
func (q Query) WithCount() Query {
	q.Count = true
	return q
}

// Execute runs q on e.
func (q Query) Execute(ctx context.Context, e Executor) (*Result, error) {
	return e.Execute(ctx, q)
}
