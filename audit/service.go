package audit

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/authcore/internal/metrics"
	"go.pilab.hu/authcore/token"
)

// Service appends and verifies login audit records for one node.
type Service struct {
	store     Store
	signer    *token.Signer
	localNode string
	now       func() time.Time
}

// NewService creates an audit service writing records as localNode.
func NewService(store Store, signer *token.Signer, localNode string) *Service {
	return &Service{
		store:     store,
		signer:    signer,
		localNode: localNode,
		now:       time.Now,
	}
}

// RecordData is a record with its verification verdict.
type RecordData struct {
	Record
	Valid bool
}

// Append records a login attempt. Every attempt is logged, successful or
// not; an attempt that cannot be logged is an error the caller must treat
// as a failed login.
func (s *Service) Append(ctx context.Context, remoteIP, userAgent, userID string, outcome Outcome) error {
	err := s.store.AppendNext(ctx, s.localNode, func(last *Record) (*Record, error) {
		record := &Record{
			LocalNode: s.localNode,
			ID:        1,
			RemoteIP:  remoteIP,
			UserAgent: userAgent,
			UserID:    userID,
			LoginAt:   s.now().Truncate(time.Millisecond),
			Outcome:   outcome,
		}
		if last != nil {
			record.ID = last.ID + 1
			record.PreviousID = last.ID
		}
		record.Signature = s.signer.Sign(canonicalMessage(record))
		return record, nil
	})
	if err != nil {
		return fmt.Errorf("append audit record for %s: %w", userID, err)
	}
	metrics.AuditRecordsTotal.Inc()
	return nil
}

// Record returns the record with the given id on the local node, verified
// against its own signature.
func (s *Service) Record(ctx context.Context, id int64) (*RecordData, error) {
	record, err := s.store.Record(ctx, s.localNode, id)
	if err != nil {
		return nil, err
	}
	return &RecordData{
		Record: *record,
		Valid:  s.signer.Verify(canonicalMessage(record), record.Signature),
	}, nil
}

// Find returns matching records with their verification verdicts. A record
// is valid when its signature verifies and its predecessor record is still
// present; chain heads, which name no predecessor, only need a valid
// signature. Predecessor presence is an existence check, not a recursive
// verification, so one forged record flags itself and at most its
// immediate successor.
func (s *Service) Find(ctx context.Context, q Query) ([]RecordData, error) {
	rows, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	records := make([]RecordData, 0, len(rows))
	for _, row := range rows {
		linked := row.PreviousID == 0 || row.PreviousExists
		records = append(records, RecordData{
			Record: row.Record,
			Valid:  linked && s.signer.Verify(canonicalMessage(&row.Record), row.Signature),
		})
	}
	return records, nil
}

// LocalNode derives the audit log node name of this process: the host name,
// falling back to a resolved host address when the name is unavailable.
func LocalNode() string {
	name, err := os.Hostname()
	if err == nil && name != "" {
		return name
	}
	log.Warn().Err(err).Msg("cannot determine host name for the audit log")
	addrs, err := net.LookupHost("localhost")
	if err == nil && len(addrs) > 0 {
		return addrs[0]
	}
	return "localhost"
}
