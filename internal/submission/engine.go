package submission

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/posync/internal/purchaseorders"
	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"github.com/angelmondragon/posync/pkg/logger"
	"github.com/angelmondragon/posync/pkg/metrics"
	"github.com/angelmondragon/posync/pkg/portal"
)

const (
	DefaultBatchSize     = 50
	DefaultSubmitTimeout = portal.DefaultTimeout
	DefaultBatchDelay    = 5 * time.Second
)

// Ledger is the control-record surface the engine reads and writes.
type Ledger interface {
	HasPostedRecord(ctx context.Context, externalID, databaseID string) (bool, error)
	RecordSuccess(ctx context.Context, externalID, databaseID, portalID string) error
	RecordFailure(ctx context.Context, externalID, databaseID, diagnostic string) error
	RecordDuplicate(ctx context.Context, externalID, databaseID, diagnostic string) error
}

// Portal submits one batch.
type Portal interface {
	SubmitBatch(ctx context.Context, creds portal.Credentials, orders []portal.PurchaseOrder) (*portal.BatchResponse, error)
}

// Tenant is one ERP database paired with its portal credentials.
type Tenant struct {
	DatabaseID  string
	Credentials portal.Credentials
}

type Config struct {
	BatchSize     int
	SubmitTimeout time.Duration
	BatchDelay    time.Duration
}

// Engine validates, batches and submits orders and is the only writer of the ledger.
type Engine struct {
	ledger  Ledger
	portal  Portal
	cfg     Config
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Engine)

func WithLogger(logg *logger.Logger) Option {
	return func(e *Engine) {
		if logg != nil {
			e.logg = logg
		}
	}
}

func WithMetrics(m *metrics.SyncMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSleep replaces the inter-batch wait, mostly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

func NewEngine(ledger Ledger, client Portal, cfg Config, opts ...Option) (*Engine, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if client == nil {
		return nil, fmt.Errorf("portal client required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	e := &Engine{
		ledger: ledger,
		portal: client,
		cfg:    cfg,
		logg:   logger.New(logger.Options{ServiceName: "submission", Output: io.Discard}),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Run processes the orders of one tenant: posted orders are skipped, invalid ones recorded as
// ERROR, the rest submitted in sequential batches. Only cancellation of ctx returns an error;
// every other failure is recorded per order and reflected in the summary.
func (e *Engine) Run(ctx context.Context, tenant Tenant, orders []purchaseorders.Translated) (SyncSummary, error) {
	summary := SyncSummary{DatabaseID: tenant.DatabaseID, DuplicateDetails: []DuplicateReport{}}
	if strings.TrimSpace(tenant.DatabaseID) == "" {
		return summary, pkgerrors.New(pkgerrors.CodeValidation, "tenant database id is required")
	}
	ctx = e.logg.WithTenant(e.logg.WithComponent(ctx, "submission"), tenant.DatabaseID)

	valid := e.gate(ctx, tenant, orders, &summary)
	batches := partition(valid, e.cfg.BatchSize)
	e.logg.Info(ctx, fmt.Sprintf("submitting %d order(s) in %d batch(es)", len(valid), len(batches)))

	var runErr error
	for i, batch := range batches {
		if i > 0 {
			if err := e.sleep(ctx, e.cfg.BatchDelay); err != nil {
				runErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		e.processBatch(e.logg.WithBatch(ctx, i+1), tenant, i+1, batch, &summary)
		summary.Batches++
	}

	e.observe(tenant.DatabaseID, summary)
	e.logg.Info(ctx, "sync summary: "+summary.String())
	if runErr != nil {
		e.logg.Warn(ctx, fmt.Sprintf("run interrupted after %d of %d batch(es): %v", summary.Batches, len(batches), runErr))
		return summary, runErr
	}
	return summary, nil
}

// gate drops already-posted orders and records invalid ones, returning the orders to submit in
// their original order.
func (e *Engine) gate(ctx context.Context, tenant Tenant, orders []purchaseorders.Translated, summary *SyncSummary) []portal.PurchaseOrder {
	valid := make([]portal.PurchaseOrder, 0, len(orders))
	for _, translated := range orders {
		externalID := translated.Order.ExternalID

		posted, err := e.ledger.HasPostedRecord(ctx, externalID, tenant.DatabaseID)
		if err != nil {
			// Without the ledger answer the order could be a resubmission; leave it for the next run.
			e.ledgerFailure(ctx, "read control record for "+externalID, err, summary)
			continue
		}
		if posted {
			summary.Skipped++
			continue
		}

		purchaseorders.NormalizeSentinels(&translated.Order)
		order, verrs := purchaseorders.Validate(translated)
		if len(verrs) > 0 {
			summary.Errors++
			summary.Invalid++
			e.logg.Warn(e.logg.WithField(ctx, "external_id", externalID), "order failed validation: "+verrs.Error())
			e.recordFailure(ctx, tenant, externalID, verrs.Error(), summary)
			continue
		}
		valid = append(valid, order)
	}
	return valid
}

func partition(orders []portal.PurchaseOrder, size int) [][]portal.PurchaseOrder {
	batches := make([][]portal.PurchaseOrder, 0, (len(orders)+size-1)/size)
	for start := 0; start < len(orders); start += size {
		end := start + size
		if end > len(orders) {
			end = len(orders)
		}
		batches = append(batches, orders[start:end])
	}
	return batches
}

func (e *Engine) observe(databaseID string, summary SyncSummary) {
	e.metrics.AddOrders(databaseID, metrics.OutcomePosted, summary.Posted)
	e.metrics.AddOrders(databaseID, metrics.OutcomeError, summary.Errors-summary.Invalid)
	e.metrics.AddOrders(databaseID, metrics.OutcomeInvalid, summary.Invalid)
	e.metrics.AddOrders(databaseID, metrics.OutcomeDuplicate, summary.Duplicates)
	e.metrics.AddOrders(databaseID, metrics.OutcomeSkipped, summary.Skipped)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
