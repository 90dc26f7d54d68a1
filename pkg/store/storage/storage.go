// Package storage declares generic CRUD, pagination, filter, and
// transaction interfaces. postgres.BaseStore uses its Querier; no store in
// the engine implements the CRUD interfaces.
package storage

import (
	"context"
	"database/sql"
	"time"
)

// Entity represents a storable record keyed by the monitored entity it
// belongs to (a service name, session ID, or provider ID depending on the
// family). All domain types with CRUD stores implement this.
type Entity interface {
	GetID() string
	GetEntityID() string
	SetCreatedAt(time.Time)
	SetUpdatedAt(time.Time)
}

// CRUDStore defines generic CRUD operations for any entity type.
type CRUDStore[T Entity] interface {
	Create(ctx context.Context, entity T) (T, error)
	Get(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id string) error

	// List returns entities for a monitored entity ID with pagination.
	List(ctx context.Context, entityID string, limit, offset int) ([]T, error)
	Count(ctx context.Context, entityID string) (int64, error)
}

// ReadOnlyStore defines read-only operations for entities.
type ReadOnlyStore[T Entity] interface {
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, entityID string, limit, offset int) ([]T, error)
	Count(ctx context.Context, entityID string) (int64, error)
}

// WriteStore defines write operations for entities.
type WriteStore[T Entity] interface {
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id string) error
}

// TxStore provides transaction support for stores.
type TxStore interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// QueryBuilder helps construct SQL queries with filters.
type QueryBuilder interface {
	Where(condition string, args ...any) QueryBuilder
	OrderBy(column string, desc bool) QueryBuilder
	Limit(n int) QueryBuilder
	Offset(n int) QueryBuilder
	Build() (string, []any)
}

// Scanner abstracts row scanning for database results.
type Scanner interface {
	Scan(dest ...any) error
}

// Querier abstracts database query execution so stores work identically
// inside and outside an active transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DBProvider provides access to the underlying database connection.
type DBProvider interface {
	DB() *sql.DB
	Querier(ctx context.Context) Querier
}

// Pagination holds pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

func DefaultPagination() Pagination {
	return Pagination{Limit: 50, Offset: 0}
}

func (p Pagination) Normalize(maxLimit int) Pagination {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ListResult wraps a list response with pagination metadata.
type ListResult[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

func NewListResult[T any](items []T, total int64, limit, offset int) ListResult[T] {
	return ListResult[T]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(items)) < total,
	}
}

// Filter represents a query filter condition.
type Filter struct {
	Field    string
	Operator string // =, !=, <, >, <=, >=, LIKE, IN, IS NULL, IS NOT NULL
	Value    any
}

type FilterSet []Filter

func (fs *FilterSet) Add(field, operator string, value any) {
	*fs = append(*fs, Filter{Field: field, Operator: operator, Value: value})
}

func (fs *FilterSet) Eq(field string, value any)    { fs.Add(field, "=", value) }
func (fs *FilterSet) NotEq(field string, value any) { fs.Add(field, "!=", value) }
func (fs *FilterSet) Like(field, pattern string)    { fs.Add(field, "LIKE", pattern) }
func (fs *FilterSet) In(field string, values any)   { fs.Add(field, "IN", values) }
func (fs *FilterSet) IsNull(field string)           { fs.Add(field, "IS NULL", nil) }
func (fs *FilterSet) IsNotNull(field string)        { fs.Add(field, "IS NOT NULL", nil) }

type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

type Sort struct {
	Field string
	Order SortOrder
}

type SortSet []Sort

func (ss *SortSet) Add(field string, order SortOrder) { *ss = append(*ss, Sort{Field: field, Order: order}) }
func (ss *SortSet) Asc(field string)                  { ss.Add(field, SortAsc) }
func (ss *SortSet) Desc(field string)                 { ss.Add(field, SortDesc) }

// QueryOptions combines filters, sorting, and pagination.
type QueryOptions struct {
	Filters    FilterSet
	Sorts      SortSet
	Pagination Pagination
}

func NewQueryOptions() QueryOptions {
	return QueryOptions{Pagination: DefaultPagination()}
}
