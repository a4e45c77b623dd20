package pipeline

import (
	"context"
	"fmt"

	"github.com/angelmondragon/posync/internal/purchaseorders"
	"github.com/angelmondragon/posync/internal/rowsource"
	"github.com/angelmondragon/posync/internal/submission"
	"github.com/angelmondragon/posync/pkg/config"
	"github.com/angelmondragon/posync/pkg/db"
	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"github.com/angelmondragon/posync/pkg/logger"
	"github.com/angelmondragon/posync/pkg/portal"
)

// RowSource reads the flat order rows of one ERP database.
type RowSource interface {
	FetchRows(ctx context.Context, conn rowsource.Querier) ([]purchaseorders.FlatOrderRow, error)
}

// Submitter pushes translated orders through the ledger and the portal.
type Submitter interface {
	Run(ctx context.Context, tenant submission.Tenant, orders []purchaseorders.Translated) (submission.SyncSummary, error)
}

// ERPConn is an open connection to a tenant's ERP database.
type ERPConn interface {
	rowsource.Querier
	Close() error
}

// Connector opens the ERP database of a tenant.
type Connector func(ctx context.Context, tenant config.TenantConfig) (ERPConn, error)

// DBConnector opens ERP databases through pkg/db using the tenant's driver.
func DBConnector(logg *logger.Logger) Connector {
	return func(ctx context.Context, tenant config.TenantConfig) (ERPConn, error) {
		client, err := db.NewERP(ctx, tenant, logg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

type Params struct {
	Logger     *logger.Logger
	Connect    Connector
	Source     RowSource
	Translator *purchaseorders.Translator
	Submitter  Submitter
}

// Pipeline runs the read, aggregate, translate and submit steps for one tenant at a time.
// It holds no per-tenant state, so one instance serves every tenant.
type Pipeline struct {
	logg       *logger.Logger
	connect    Connector
	source     RowSource
	translator *purchaseorders.Translator
	submitter  Submitter
}

func New(params Params) (*Pipeline, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Connect == nil {
		return nil, fmt.Errorf("erp connector required")
	}
	if params.Source == nil {
		return nil, fmt.Errorf("row source required")
	}
	if params.Submitter == nil {
		return nil, fmt.Errorf("submitter required")
	}
	translator := params.Translator
	if translator == nil {
		translator = purchaseorders.NewTranslator(purchaseorders.DefaultMetadataMaxIndex)
	}
	return &Pipeline{
		logg:       params.Logger,
		connect:    params.Connect,
		source:     params.Source,
		translator: translator,
		submitter:  params.Submitter,
	}, nil
}

// RunPurchaseOrderSync reads the tenant's open purchase orders and submits the ones not yet posted.
// Per-order and per-batch failures are settled in the ledger and counted in the summary; the
// returned error only reports a run that could not reach the submission step or was canceled.
func (p *Pipeline) RunPurchaseOrderSync(ctx context.Context, tenant config.TenantConfig) (submission.SyncSummary, error) {
	summary := submission.SyncSummary{DatabaseID: tenant.DatabaseID, DuplicateDetails: []submission.DuplicateReport{}}
	ctx = p.logg.WithTenant(ctx, tenant.DatabaseID)
	ctx = p.logg.WithComponent(ctx, "pipeline")

	conn, err := p.connect(ctx, tenant)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "connect erp database")
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			p.logg.Warn(p.logg.WithField(ctx, "error", closeErr.Error()), "failed to close erp connection")
		}
	}()

	rows, err := p.source.FetchRows(ctx, conn)
	if err != nil {
		return summary, err
	}

	aggregated := purchaseorders.Aggregate(rows)
	orders := make([]purchaseorders.Translated, 0, len(aggregated))
	for _, order := range aggregated {
		orders = append(orders, p.translator.Translate(order))
	}
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"rows":   len(rows),
		"orders": len(orders),
	}), "erp purchase orders loaded")

	return p.submitter.Run(ctx, submission.Tenant{
		DatabaseID: tenant.DatabaseID,
		Credentials: portal.Credentials{
			TenantID:  tenant.PortalTenantID,
			APIKey:    tenant.PortalAPIKey,
			APISecret: tenant.PortalAPISecret,
		},
	}, orders)
}
