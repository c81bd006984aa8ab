// Package postgres persists the login audit log in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"go.pilab.hu/authcore/audit"
)

// Store implements audit.Store on a PostgreSQL database.
//
// Expected schema:
//
//	CREATE TABLE auth_user_login_audit_log (
//	    localnode   TEXT        NOT NULL,
//	    id          BIGINT      NOT NULL,
//	    previous_id BIGINT,
//	    remoteip    TEXT        NOT NULL,
//	    useragent   TEXT        NOT NULL,
//	    userid      TEXT        NOT NULL,
//	    tslogin     TIMESTAMPTZ NOT NULL,
//	    outcome     TEXT        NOT NULL,
//	    signature   TEXT        NOT NULL,
//	    PRIMARY KEY (localnode, id)
//	);
type Store struct {
	db *sql.DB
}

// Open connects to the database behind the DSN and returns a Store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle, mainly for tests.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectLastForUpdate = `
SELECT localnode, id, previous_id, remoteip, useragent, userid, tslogin, outcome, signature
FROM auth_user_login_audit_log
WHERE localnode = $1 AND id = (SELECT max(id) FROM auth_user_login_audit_log WHERE localnode = $1)
FOR UPDATE`

const insertRecord = `
INSERT INTO auth_user_login_audit_log
  (localnode, id, previous_id, remoteip, useragent, userid, tslogin, outcome, signature)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// AppendNext implements audit.Store. The node's last record is read under a
// row lock so concurrent appenders on the same node serialize. An empty log
// has no row to lock; two first appends racing each other are caught by the
// primary key instead.
func (s *Store) AppendNext(ctx context.Context, node string, build func(last *audit.Record) (*audit.Record, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	last, err := scanRecord(tx.QueryRowContext(ctx, selectLastForUpdate, node))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read last record: %w", err)
	}

	record, err := build(last)
	if err != nil {
		return err
	}

	var previousID sql.NullInt64
	if record.PreviousID != 0 {
		previousID = sql.NullInt64{Int64: record.PreviousID, Valid: true}
	}
	_, err = tx.ExecContext(ctx, insertRecord,
		record.LocalNode,
		record.ID,
		previousID,
		record.RemoteIP,
		record.UserAgent,
		record.UserID,
		record.LoginAt,
		string(record.Outcome),
		base64.StdEncoding.EncodeToString(record.Signature))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return tx.Commit()
}

const selectRecord = `
SELECT localnode, id, previous_id, remoteip, useragent, userid, tslogin, outcome, signature
FROM auth_user_login_audit_log
WHERE localnode = $1 AND id = $2`

// Record implements audit.Store.
func (s *Store) Record(ctx context.Context, node string, id int64) (*audit.Record, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord, node, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %d: %w", id, err)
	}
	return record, nil
}

// Query implements audit.Store. Predecessor presence is resolved in the
// same statement with a self left join.
func (s *Store) Query(ctx context.Context, q audit.Query) ([]audit.QueryRow, error) {
	var sb strings.Builder
	sb.WriteString(`
SELECT l.localnode, l.id, l.previous_id, l.remoteip, l.useragent, l.userid, l.tslogin, l.outcome, l.signature,
       p.id IS NOT NULL
FROM auth_user_login_audit_log l
LEFT OUTER JOIN auth_user_login_audit_log p
  ON p.localnode = l.localnode AND p.id = l.previous_id`)

	var args []any
	var conds []string
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !q.From.IsZero() {
		conds = append(conds, "l.tslogin >= "+arg(q.From))
	}
	if !q.To.IsZero() {
		conds = append(conds, "l.tslogin <= "+arg(q.To))
	}
	if q.RemoteIP != "" {
		conds = append(conds, "l.remoteip = "+arg(q.RemoteIP))
	}
	if q.UserPattern != "" {
		conds = append(conds, "l.userid ~ "+arg(q.UserPattern))
	}
	if len(conds) > 0 {
		sb.WriteString("\nWHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString("\nORDER BY l.tslogin DESC, l.id DESC")
	if q.Limit > 0 {
		sb.WriteString("\nLIMIT " + arg(q.Limit))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var result []audit.QueryRow
	for rows.Next() {
		var row audit.QueryRow
		var previousID sql.NullInt64
		var sign64 string
		err := rows.Scan(
			&row.LocalNode,
			&row.ID,
			&previousID,
			&row.RemoteIP,
			&row.UserAgent,
			&row.UserID,
			&row.LoginAt,
			&row.Outcome,
			&sign64,
			&row.PreviousExists)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		row.PreviousID = previousID.Int64
		if row.Signature, err = base64.StdEncoding.DecodeString(sign64); err != nil {
			return nil, fmt.Errorf("decode signature of record %d: %w", row.ID, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func scanRecord(row *sql.Row) (*audit.Record, error) {
	var record audit.Record
	var previousID sql.NullInt64
	var sign64 string
	err := row.Scan(
		&record.LocalNode,
		&record.ID,
		&previousID,
		&record.RemoteIP,
		&record.UserAgent,
		&record.UserID,
		&record.LoginAt,
		&record.Outcome,
		&sign64)
	if err != nil {
		return nil, err
	}
	record.PreviousID = previousID.Int64
	if record.Signature, err = base64.StdEncoding.DecodeString(sign64); err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	return &record, nil
}
