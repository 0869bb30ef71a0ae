package backend

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query is a REST-style filter: equality predicates, ordering and a limit.
type Query struct {
	Columns string
	filters []filter
	orders  []string
	limit   int
}

type filter struct {
	column string
	op     string
	value  string
}

// NewQuery starts a query selecting all columns.
func NewQuery() *Query {
	return &Query{Columns: "*"}
}

// Select restricts the returned columns.
func (q *Query) Select(columns ...string) *Query {
	if len(columns) > 0 {
		q.Columns = strings.Join(columns, ",")
	}
	return q
}

// Eq adds an equality predicate.
func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, filter{column: column, op: "eq", value: fmt.Sprint(value)})
	return q
}

// Gte adds a greater-or-equal predicate.
func (q *Query) Gte(column string, value any) *Query {
	q.filters = append(q.filters, filter{column: column, op: "gte", value: fmt.Sprint(value)})
	return q
}

// Lt adds a strictly-less predicate.
func (q *Query) Lt(column string, value any) *Query {
	q.filters = append(q.filters, filter{column: column, op: "lt", value: fmt.Sprint(value)})
	return q
}

// Order sorts by column.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit caps the number of rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Values encodes the query as URL parameters.
func (q *Query) Values() url.Values {
	v := url.Values{}
	if q == nil {
		v.Set("select", "*")
		return v
	}
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	v.Set("select", cols)
	for _, f := range q.filters {
		v.Add(f.column, f.op+"."+f.value)
	}
	if len(q.orders) > 0 {
		v.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	return v
}

// Key is a stable string form used as a cache key.
func (q *Query) Key(table string) string {
	return table + "?" + q.Values().Encode()
}
