package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/posync/api/responses"
	"github.com/angelmondragon/posync/api/validators"
	"github.com/angelmondragon/posync/pkg/db/models"
	"github.com/angelmondragon/posync/pkg/enums"
	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"github.com/angelmondragon/posync/pkg/logger"
)

// ControlLister reads ledger records for triage.
type ControlLister interface {
	ListByStatus(ctx context.Context, databaseID string, status enums.ControlStatus, limit int) ([]models.ControlRecord, error)
}

// ControlView is the public shape of a control record.
type ControlView struct {
	OrderExternalID string              `json:"order_external_id"`
	DatabaseID      string              `json:"database_id"`
	PortalID        *string             `json:"portal_id,omitempty"`
	Status          enums.ControlStatus `json:"status"`
	ResponseDetail  *string             `json:"response_detail,omitempty"`
	LastUpdate      time.Time           `json:"last_update"`
}

func NewControlView(record models.ControlRecord) ControlView {
	return ControlView{
		OrderExternalID: record.OrderExternalID,
		DatabaseID:      record.DatabaseID,
		PortalID:        record.PortalID,
		Status:          record.Status,
		ResponseDetail:  record.ResponseDetail,
		LastUpdate:      record.LastUpdate,
	}
}

// ListControls answers GET ?database_id=&status=&limit= with the most recent records first.
// status defaults to ERROR.
func ListControls(ledger ControlLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		databaseID, err := validators.RequireQuery(r, "database_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := enums.ControlStatusError
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseControlStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			status = parsed
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		records, err := ledger.ListByStatus(ctx, databaseID, status, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		views := make([]ControlView, 0, len(records))
		for _, record := range records {
			views = append(views, NewControlView(record))
		}
		responses.WriteSuccess(w, views)
	}
}
