package handler

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// emptyRows is a pgx.Rows that yields no rows.
type emptyRows struct{}

func newEmptyRows() *emptyRows { return &emptyRows{} }

func (r *emptyRows) Next() bool                                   { return false }
func (r *emptyRows) Scan(dest ...any) error                       { return nil }
func (r *emptyRows) Err() error                                   { return nil }
func (r *emptyRows) Close()                                       {}
func (r *emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *emptyRows) RawValues() [][]byte                          { return nil }
func (r *emptyRows) Values() ([]any, error)                       { return nil, nil }
func (r *emptyRows) Conn() *pgx.Conn                              { return nil }
