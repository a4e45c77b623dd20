package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/posync/api/responses"
	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"github.com/angelmondragon/posync/pkg/logger"
)

// LastRunReader reads when a tenant last completed a sync.
type LastRunReader interface {
	LastRun(ctx context.Context, env, databaseID string) (time.Time, bool, error)
}

type TenantStatus struct {
	DatabaseID string     `json:"database_id"`
	LastRun    *time.Time `json:"last_run,omitempty"`
}

// ListTenants reports the configured tenants with their last completed sync.
func ListTenants(env string, databaseIDs []string, runs LastRunReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		statuses := make([]TenantStatus, 0, len(databaseIDs))
		for _, id := range databaseIDs {
			status := TenantStatus{DatabaseID: id}
			at, ok, err := runs.LastRun(ctx, env, id)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read last run"))
				return
			}
			if ok {
				status.LastRun = &at
			}
			statuses = append(statuses, status)
		}
		responses.WriteSuccess(w, statuses)
	}
}
