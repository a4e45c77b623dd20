package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/posync/pkg/db/models"
	"github.com/angelmondragon/posync/pkg/enums"
	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
)

const maxDetailLength = 4000

// Service is the only writer of control records. Every call goes to the durable store;
// nothing is cached between calls.
type Service interface {
	HasPostedRecord(ctx context.Context, externalID, databaseID string) (bool, error)
	RecordSuccess(ctx context.Context, externalID, databaseID, portalID string) error
	RecordFailure(ctx context.Context, externalID, databaseID, diagnostic string) error
	RecordDuplicate(ctx context.Context, externalID, databaseID, diagnostic string) error
	ListByStatus(ctx context.Context, databaseID string, status enums.ControlStatus, limit int) ([]models.ControlRecord, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// Option customizes the ledger service.
type Option func(*service)

// WithClock overrides the timestamp source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	s := &service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) HasPostedRecord(ctx context.Context, externalID, databaseID string) (bool, error) {
	if err := validateKey(externalID, databaseID); err != nil {
		return false, err
	}
	record, err := s.repo.FindByKey(ctx, externalID, databaseID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read control record")
	}
	if record == nil || record.Status != enums.ControlStatusPosted {
		return false, nil
	}
	return record.PortalID != nil && strings.TrimSpace(*record.PortalID) != "", nil
}

func (s *service) RecordSuccess(ctx context.Context, externalID, databaseID, portalID string) error {
	if strings.TrimSpace(portalID) == "" {
		return pkgerrors.New(pkgerrors.CodeLedgerWrite, "portal id is required for a posted record")
	}
	portal := portalID
	return s.write(ctx, externalID, databaseID, enums.ControlStatusPosted, &portal, nil)
}

func (s *service) RecordFailure(ctx context.Context, externalID, databaseID, diagnostic string) error {
	return s.write(ctx, externalID, databaseID, enums.ControlStatusError, nil, detail(diagnostic))
}

func (s *service) RecordDuplicate(ctx context.Context, externalID, databaseID, diagnostic string) error {
	return s.write(ctx, externalID, databaseID, enums.ControlStatusDuplicate, nil, detail(diagnostic))
}

func (s *service) ListByStatus(ctx context.Context, databaseID string, status enums.ControlStatus, limit int) ([]models.ControlRecord, error) {
	if strings.TrimSpace(databaseID) == "" {
		return nil, fmt.Errorf("database id is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid control status %q", status)
	}
	records, err := s.repo.ListByStatus(ctx, databaseID, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list control records")
	}
	return records, nil
}

// write upserts one record. Only a POSTED write may replace an existing POSTED row, which
// keeps HasPostedRecord monotonic.
func (s *service) write(ctx context.Context, externalID, databaseID string, status enums.ControlStatus, portalID, responseDetail *string) error {
	if err := validateKey(externalID, databaseID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeLedgerWrite, err, "invalid control record key")
	}
	now := s.now().UTC()
	record := &models.ControlRecord{
		OrderExternalID: externalID,
		DatabaseID:      databaseID,
		PortalID:        portalID,
		Status:          status,
		ResponseDetail:  responseDetail,
		LastUpdate:      now,
		CreatedAt:       now,
	}
	keepPosted := status != enums.ControlStatusPosted
	if err := s.repo.Upsert(ctx, record, keepPosted); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeLedgerWrite, err, fmt.Sprintf("record %s for %s", status, externalID)).
			WithDetails(map[string]any{"external_id": externalID, "database_id": databaseID, "status": status})
	}
	return nil
}

// validateKey accepts an empty external id: such orders still get a diagnosable ERROR row.
func validateKey(externalID, databaseID string) error {
	if strings.TrimSpace(databaseID) == "" {
		return fmt.Errorf("database id is required")
	}
	if len(externalID) > 100 {
		return fmt.Errorf("external id %q exceeds 100 characters", externalID)
	}
	return nil
}

func detail(diagnostic string) *string {
	trimmed := strings.TrimSpace(diagnostic)
	if trimmed == "" {
		return nil
	}
	if runes := []rune(trimmed); len(runes) > maxDetailLength {
		trimmed = string(runes[:maxDetailLength])
	}
	return &trimmed
}
