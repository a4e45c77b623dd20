package pipeline

import (
	"context"
	"time"

	"github.com/angelmondragon/posync/pkg/config"
)

// TenantJob adapts one tenant's sync to the scheduler's job contract.
type TenantJob struct {
	pipeline *Pipeline
	tenant   config.TenantConfig
	onDone   func(ctx context.Context, databaseID string, at time.Time) error
	now      func() time.Time
}

type JobOption func(*TenantJob)

// WithCompletionHook runs fn after every sync that returned without error.
func WithCompletionHook(fn func(ctx context.Context, databaseID string, at time.Time) error) JobOption {
	return func(j *TenantJob) {
		j.onDone = fn
	}
}

func NewTenantJob(p *Pipeline, tenant config.TenantConfig, opts ...JobOption) *TenantJob {
	job := &TenantJob{pipeline: p, tenant: tenant, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(job)
		}
	}
	return job
}

// Jobs builds one job per tenant, in order.
func Jobs(p *Pipeline, tenants []config.TenantConfig, opts ...JobOption) []*TenantJob {
	jobs := make([]*TenantJob, 0, len(tenants))
	for _, tenant := range tenants {
		jobs = append(jobs, NewTenantJob(p, tenant, opts...))
	}
	return jobs
}

func (j *TenantJob) Name() string { return "po_sync:" + j.tenant.DatabaseID }

// Scope is the database id the job's run lock is keyed on.
func (j *TenantJob) Scope() string { return j.tenant.DatabaseID }

func (j *TenantJob) Run(ctx context.Context) error {
	if _, err := j.pipeline.RunPurchaseOrderSync(ctx, j.tenant); err != nil {
		return err
	}
	if j.onDone != nil {
		if hookErr := j.onDone(ctx, j.tenant.DatabaseID, j.now()); hookErr != nil {
			j.pipeline.logg.Error(ctx, "failed to record tenant sync completion", hookErr)
		}
	}
	return nil
}
