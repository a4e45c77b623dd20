package submission

import (
	"context"

	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
)

// Ledger writes outlive cancellation of the run so an outcome the portal already applied is
// not lost.

func (e *Engine) recordSuccess(ctx context.Context, tenant Tenant, externalID, portalID string, summary *SyncSummary) {
	if err := e.ledger.RecordSuccess(context.WithoutCancel(ctx), externalID, tenant.DatabaseID, portalID); err != nil {
		e.ledgerFailure(ctx, "record POSTED for "+externalID, err, summary)
	}
}

func (e *Engine) recordFailure(ctx context.Context, tenant Tenant, externalID, diagnostic string, summary *SyncSummary) {
	if err := e.ledger.RecordFailure(context.WithoutCancel(ctx), externalID, tenant.DatabaseID, diagnostic); err != nil {
		e.ledgerFailure(ctx, "record ERROR for "+externalID, err, summary)
	}
}

func (e *Engine) recordDuplicate(ctx context.Context, tenant Tenant, batch int, externalID, diagnostic string, summary *SyncSummary) {
	summary.Duplicates++
	summary.DuplicateDetails = append(summary.DuplicateDetails, DuplicateReport{ExternalID: externalID, Batch: batch})
	if err := e.ledger.RecordDuplicate(context.WithoutCancel(ctx), externalID, tenant.DatabaseID, diagnostic); err != nil {
		e.ledgerFailure(ctx, "record DUPLICATE for "+externalID, err, summary)
	}
}

// ledgerFailure logs and counts a failed ledger call; it never stops the run.
func (e *Engine) ledgerFailure(ctx context.Context, action string, err error, summary *SyncSummary) {
	summary.LedgerFailures++
	e.metrics.IncLedgerFailure(summary.DatabaseID)
	e.logg.Error(e.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "ledger call failed: "+action, err)
}
