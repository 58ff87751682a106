// Package postgres implements the metadata table as a single items relation
// holding one JSONB document per (pk, sk).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/project-files/pkg/projectfiles"
	"github.com/tendant/project-files/pkg/projectfiles/table/avitem"
)

// Schema creates the items relation. The C collation keeps sort keys in
// byte order.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
	pk   TEXT COLLATE "C" NOT NULL,
	sk   TEXT COLLATE "C" NOT NULL,
	data JSONB NOT NULL,
	PRIMARY KEY (pk, sk)
)`

// DBTX is an interface that allows us to use either a connection pool or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Table implements projectfiles.Table using PostgreSQL
type Table struct {
	db DBTX
}

// New creates a new PostgreSQL table
func New(db DBTX) projectfiles.Table {
	return &Table{db: db}
}

// NewWithPool creates a new PostgreSQL table with connection pool
func NewWithPool(pool *pgxpool.Pool) projectfiles.Table {
	return &Table{db: pool}
}

// EnsureSchema creates the items relation if it does not exist
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return projectfiles.ErrConditionFailed
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s: %s", projectfiles.ErrThrottled, operation, pgErr.Message)
		case "53300": // too_many_connections
			return fmt.Errorf("%w: %s: %s", projectfiles.ErrThrottled, operation, pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (t *Table) GetItem(ctx context.Context, key projectfiles.Key, out any) error {
	var data []byte
	err := t.db.QueryRow(ctx, `SELECT data FROM items WHERE pk = $1 AND sk = $2`, key.PK, key.SK).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return projectfiles.ErrItemNotFound
		}
		return handlePostgresError("get item", err)
	}
	return decode(data, out)
}

func (t *Table) PutItemIfAbsent(ctx context.Context, in any) error {
	item, err := avitem.Marshal(in)
	if err != nil {
		return err
	}
	key, err := avitem.KeyOf(item)
	if err != nil {
		return err
	}
	data, err := avitem.ToJSON(item)
	if err != nil {
		return err
	}

	tag, err := t.db.Exec(ctx, `
		INSERT INTO items (pk, sk, data) VALUES ($1, $2, $3)
		ON CONFLICT (pk, sk) DO NOTHING`, key.PK, key.SK, data)
	if err != nil {
		return handlePostgresError("put item", err)
	}
	if tag.RowsAffected() == 0 {
		return projectfiles.ErrConditionFailed
	}
	return nil
}

// UpdateItem reads the row under a row lock, applies the update in Go and
// writes it back in the same transaction.
func (t *Table) UpdateItem(ctx context.Context, key projectfiles.Key, update projectfiles.ItemUpdate, out any) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return handlePostgresError("begin update", err)
	}
	defer tx.Rollback(ctx)

	var data []byte
	err = tx.QueryRow(ctx, `SELECT data FROM items WHERE pk = $1 AND sk = $2 FOR UPDATE`, key.PK, key.SK).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return projectfiles.ErrConditionFailed
		}
		return handlePostgresError("lock item", err)
	}

	item, err := avitem.FromJSON(data)
	if err != nil {
		return err
	}
	if !avitem.MatchAll(item, update.Conditions) {
		return projectfiles.ErrConditionFailed
	}

	updated, err := avitem.Apply(item, update)
	if err != nil {
		return err
	}
	newData, err := avitem.ToJSON(updated)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE items SET data = $3 WHERE pk = $1 AND sk = $2`, key.PK, key.SK, newData); err != nil {
		return handlePostgresError("update item", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return handlePostgresError("commit update", err)
	}

	if out == nil {
		return nil
	}
	if err := attributevalue.UnmarshalMap(updated, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

// Query scans one partition in sort-key order. One row beyond the limit is
// read to tell whether the partition is exhausted.
func (t *Table) Query(ctx context.Context, q projectfiles.Query, out any) (*projectfiles.Key, error) {
	var sb strings.Builder
	args := []any{q.PartitionKey}
	sb.WriteString(`SELECT sk, data FROM items WHERE pk = $1`)

	if q.SortKeyPrefix != "" {
		args = append(args, q.SortKeyPrefix)
		sb.WriteString(` AND starts_with(sk, $` + strconv.Itoa(len(args)) + `)`)
	}
	if q.StartKey != nil && q.StartKey.PK == q.PartitionKey {
		args = append(args, q.StartKey.SK)
		sb.WriteString(` AND sk > $` + strconv.Itoa(len(args)))
	}
	sb.WriteString(` ORDER BY sk`)
	if q.Limit > 0 {
		args = append(args, q.Limit+1)
		sb.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}

	rows, err := t.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, handlePostgresError("query", err)
	}
	defer rows.Close()

	var (
		items   []avitem.Item
		scanned int
		lastSK  string
		more    bool
	)
	for rows.Next() {
		if q.Limit > 0 && scanned == q.Limit {
			more = true
			break
		}
		var (
			sk   string
			data []byte
		)
		if err := rows.Scan(&sk, &data); err != nil {
			return nil, handlePostgresError("scan item", err)
		}
		scanned++
		lastSK = sk

		item, err := avitem.FromJSON(data)
		if err != nil {
			return nil, err
		}
		if avitem.MatchAll(item, q.Filters) {
			items = append(items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("query", err)
	}

	if items == nil {
		items = []avitem.Item{}
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}

	if !more {
		return nil, nil
	}
	return &projectfiles.Key{PK: q.PartitionKey, SK: lastSK}, nil
}

func (t *Table) DeleteItem(ctx context.Context, key projectfiles.Key) error {
	if _, err := t.db.Exec(ctx, `DELETE FROM items WHERE pk = $1 AND sk = $2`, key.PK, key.SK); err != nil {
		return handlePostgresError("delete item", err)
	}
	return nil
}

func decode(data []byte, out any) error {
	item, err := avitem.FromJSON(data)
	if err != nil {
		return err
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}
