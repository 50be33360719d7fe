package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// ErrNotFound is returned by stores when a row does not exist
var ErrNotFound = errors.New("record not found")

// Builder returns a statement builder for the client's dialect
func (c *Client) Builder() *entsql.DialectBuilder {
	return entsql.Dialect(c.Dialect())
}

// Query runs a built statement and calls scan for every row
func Query(ctx context.Context, eq dialect.ExecQuerier, q entsql.Querier, scan func(rows *entsql.Rows) error) error {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := eq.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Exec runs a built statement and returns the number of affected rows
func Exec(ctx context.Context, eq dialect.ExecQuerier, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	var res sql.Result
	if err := eq.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertID runs an INSERT ... RETURNING id and returns the generated id
func InsertID(ctx context.Context, eq dialect.ExecQuerier, ib *entsql.InsertBuilder) (int, error) {
	var (
		id    int
		found bool
	)
	err := Query(ctx, eq, ib.Returning("id"), func(rows *entsql.Rows) error {
		found = true
		return rows.Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("insert returned no id")
	}
	return id, nil
}

// Count runs a COUNT(*) selector and returns the single result
func Count(ctx context.Context, eq dialect.ExecQuerier, sel *entsql.Selector) (int, error) {
	var n int
	err := Query(ctx, eq, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}
