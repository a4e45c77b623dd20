package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"github.com/angelmondragon/posync/pkg/portal"
)

type batchState string

const (
	stateSubmitting        batchState = "SUBMITTING"
	stateDuplicateDetected batchState = "DUPLICATE_DETECTED"
	stateDone              batchState = "DONE"

	// maxAttempts is the original submission plus one retry after a duplicate.
	maxAttempts = 2
)

// processBatch drives one batch to DONE. A duplicate-order conflict removes the offending
// order and resubmits once; a second conflict ends the batch.
func (e *Engine) processBatch(ctx context.Context, tenant Tenant, number int, batch []portal.PurchaseOrder, summary *SyncSummary) {
	current := batch
	state := stateSubmitting

	for attempt := 1; state != stateDone; attempt++ {
		actx := e.logg.WithField(ctx, "attempt", attempt)
		e.logg.Info(actx, fmt.Sprintf("batch %s with %d order(s)", state, len(current)))

		resp, err := e.submit(actx, tenant, current)
		if err == nil {
			e.recordResponse(actx, tenant, current, resp, summary)
			state = stateDone
			continue
		}

		duplicateID, remaining, ok := splitDuplicate(err, current)
		switch {
		case ok && attempt < maxAttempts:
			state = stateDuplicateDetected
			e.logg.Warn(actx, fmt.Sprintf("batch %s: portal already has %s", state, duplicateID))
			e.recordDuplicate(actx, tenant, number, duplicateID, duplicateDetail(err), summary)
			current = remaining
			if len(current) == 0 {
				state = stateDone
				continue
			}
			e.metrics.IncRetry(tenant.DatabaseID)
			state = stateSubmitting
		case ok:
			e.logg.Warn(actx, fmt.Sprintf("duplicate %s reported again on retry, closing batch", duplicateID))
			e.recordDuplicate(actx, tenant, number, duplicateID, duplicateDetail(err), summary)
			e.failAll(actx, tenant, remaining, failureTag(err), summary)
			state = stateDone
		default:
			e.logg.Error(actx, "batch submission failed", err)
			e.failAll(actx, tenant, current, failureTag(err), summary)
			state = stateDone
		}
	}
}

// submit sends one request bounded by the submit timeout.
func (e *Engine) submit(ctx context.Context, tenant Tenant, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
	defer cancel()

	started := time.Now()
	resp, err := e.portal.SubmitBatch(callCtx, tenant.Credentials, orders)
	result := "ok"
	if err != nil {
		result = strings.ToLower(string(pkgerrors.CodeOf(err)))
	}
	e.metrics.ObserveBatch(tenant.DatabaseID, result, time.Since(started))
	return resp, err
}

// recordResponse stores the outcome of a 2xx answer. Without a per-order breakdown every order
// is recorded as POSTED under an id derived from the acknowledgement.
func (e *Engine) recordResponse(ctx context.Context, tenant Tenant, orders []portal.PurchaseOrder, resp *portal.BatchResponse, summary *SyncSummary) {
	if !resp.HasPerOrderStatus() {
		ref := resp.AckRef()
		e.logg.Warn(ctx, fmt.Sprintf("portal acknowledged the batch without per-order status (ref %s); recording %d order(s) as posted", ref, len(orders)))
		for _, order := range orders {
			summary.Posted++
			e.recordSuccess(ctx, tenant, order.ExternalID, ref+":"+order.ExternalID, summary)
		}
		return
	}

	byID := make(map[string]portal.OrderResult, len(resp.OrdersStatus))
	for _, result := range resp.OrdersStatus {
		if result.ExternalID != "" {
			byID[result.ExternalID] = result
		}
	}

	for i, order := range orders {
		result, found := byID[order.ExternalID]
		if !found && len(byID) == 0 && i < len(resp.OrdersStatus) {
			// Results without ids are positional.
			result, found = resp.OrdersStatus[i], true
		}
		switch {
		case !found:
			summary.Errors++
			e.recordFailure(ctx, tenant, order.ExternalID, "portal returned no status for this order", summary)
		case result.Succeeded():
			summary.Posted++
			e.recordSuccess(ctx, tenant, order.ExternalID, result.ID, summary)
		default:
			summary.Errors++
			e.recordFailure(ctx, tenant, order.ExternalID, result.Detail(), summary)
		}
	}
	e.logg.Info(ctx, fmt.Sprintf("batch done: %d result(s) recorded", len(orders)))
}

func (e *Engine) failAll(ctx context.Context, tenant Tenant, orders []portal.PurchaseOrder, diagnostic string, summary *SyncSummary) {
	for _, order := range orders {
		summary.Errors++
		e.recordFailure(ctx, tenant, order.ExternalID, diagnostic, summary)
	}
}

// splitDuplicate returns the duplicated id and the batch without it when err is a recognized
// duplicate conflict naming an order of the batch.
func splitDuplicate(err error, orders []portal.PurchaseOrder) (string, []portal.PurchaseOrder, bool) {
	if !pkgerrors.IsCode(err, pkgerrors.CodeDuplicate) {
		return "", nil, false
	}
	apiErr := portal.AsAPIError(err)
	if apiErr == nil || apiErr.DuplicateExternalID == "" {
		return "", nil, false
	}

	index := -1
	for i, order := range orders {
		if order.ExternalID == apiErr.DuplicateExternalID {
			index = i
			break
		}
	}
	if index < 0 {
		for i, order := range orders {
			if strings.EqualFold(order.ExternalID, apiErr.DuplicateExternalID) {
				index = i
				break
			}
		}
	}
	if index < 0 {
		return "", nil, false
	}

	remaining := make([]portal.PurchaseOrder, 0, len(orders)-1)
	remaining = append(remaining, orders[:index]...)
	remaining = append(remaining, orders[index+1:]...)
	return orders[index].ExternalID, remaining, true
}

// failureTag is the diagnostic stored for every order of a failed batch.
func failureTag(err error) string {
	if apiErr := portal.AsAPIError(err); apiErr != nil {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Description
		}
		return fmt.Sprintf("HTTP_%d: %s", apiErr.StatusCode, body)
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeTimeout:
		return "TIMEOUT"
	case pkgerrors.CodeNetwork:
		return "NETWORK_ERROR: " + err.Error()
	default:
		return string(pkgerrors.CodeOf(err)) + ": " + err.Error()
	}
}

func duplicateDetail(err error) string {
	if apiErr := portal.AsAPIError(err); apiErr != nil {
		return fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Description)
	}
	return err.Error()
}
