// Package audit maintains the tamper-evident login audit log. Records form
// a hash chain per node: every record is HMAC-signed over its own fields
// and the id of its predecessor, so removing or altering a record breaks
// verification of the stored chain.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome is the result of a recorded login attempt.
type Outcome string

const (
	// OutcomePassed records a successful login.
	OutcomePassed Outcome = "PASSED"
	// OutcomeFailed records a rejected login attempt.
	OutcomeFailed Outcome = "FAILED"
)

// ErrRecordNotFound is returned when no audit record exists for an id.
var ErrRecordNotFound = errors.New("audit record not found")

// Record is a single login audit log entry. Ids are dense and strictly
// increasing per node; the first record of a node has id 1 and PreviousID 0.
type Record struct {
	LocalNode  string
	ID         int64
	PreviousID int64
	RemoteIP   string
	UserAgent  string
	UserID     string
	LoginAt    time.Time
	Outcome    Outcome
	Signature  []byte
}

// canonicalMessage is the byte string the record signature covers. Login
// time enters as epoch milliseconds, matching storage precision.
func canonicalMessage(r *Record) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s:%s:%s:%s:%d:%d",
		r.LocalNode,
		r.ID,
		r.RemoteIP,
		r.UserAgent,
		r.UserID,
		r.Outcome,
		r.LoginAt.UnixMilli(),
		r.PreviousID))
}

// Query filters audit records. Zero-valued fields are not applied.
type Query struct {
	// From and To bound the login time, inclusive.
	From time.Time
	To   time.Time

	// RemoteIP matches exactly.
	RemoteIP string

	// UserPattern is a pattern matched against the user id; interpretation
	// is up to the store (Postgres applies it as a POSIX regex).
	UserPattern string

	// Limit caps the number of returned rows, newest first.
	Limit int
}

// QueryRow is a stored record together with the store's answer whether its
// predecessor record is present.
type QueryRow struct {
	Record
	PreviousExists bool
}

// Store persists audit records. Implementations serialize appends per node.
type Store interface {
	// AppendNext calls build with the node's current last record (nil when
	// the log is empty) and stores the record build returns. The
	// read-build-store sequence is atomic per node.
	AppendNext(ctx context.Context, node string, build func(last *Record) (*Record, error)) error

	// Record returns the record with the given id on the given node, or
	// ErrRecordNotFound.
	Record(ctx context.Context, node string, id int64) (*Record, error)

	// Query returns matching records, newest first, each with predecessor
	// presence resolved.
	Query(ctx context.Context, q Query) ([]QueryRow, error)
}
