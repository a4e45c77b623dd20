package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/posync/pkg/enums"
	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"github.com/angelmondragon/posync/pkg/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, ledger Ledger, client Portal, batchSize int, sleeper *sleepRecorder) *Engine {
	t.Helper()
	engine, err := NewEngine(ledger, client, Config{BatchSize: batchSize, BatchDelay: 5 * time.Second}, WithSleep(sleeper.sleep))
	require.NoError(t, err)
	return engine
}

func duplicateErr(externalID string) error {
	apiErr := &portal.APIError{
		StatusCode:          http.StatusConflict,
		Code:                portal.DefaultDuplicateCode,
		Description:         fmt.Sprintf("external_id %s is duplicated", externalID),
		Body:                fmt.Sprintf(`{"code":"PURCHASE_ORDER_DUPLICATED","description":"external_id %s is duplicated"}`, externalID),
		DuplicateExternalID: externalID,
	}
	return pkgerrors.Wrap(pkgerrors.CodeDuplicate, apiErr, "portal reported a duplicated order")
}

func TestRunTwoOrdersOneBatchEach(t *testing.T) {
	cases := []struct {
		name    string
		respond func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error)
		portal  map[string]string
	}{
		{
			name: "per-order status",
			portal: map[string]string{
				"PO100": "portal-PO100",
				"PO200": "portal-PO200",
			},
		},
		{
			name: "bulk acknowledgement",
			respond: func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
				return &portal.BatchResponse{StatusCode: 202, AckID: fmt.Sprintf("ack-%d", call)}, nil
			},
			portal: map[string]string{
				"PO100": "ack-1:PO100",
				"PO200": "ack-2:PO200",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := append(orderRows("PO200", 2), orderRows("PO100", 2)...)
			rows = append(rows, orderRows("PO100", 3)[2])
			ledger := newFakeLedger()
			client := &fakePortal{respond: tc.respond}
			sleeper := &sleepRecorder{}

			summary, err := newTestEngine(t, ledger, client, 1, sleeper).Run(context.Background(), testTenant, translateAll(rows))
			require.NoError(t, err)

			assert.Equal(t, [][]string{{"PO100"}, {"PO200"}}, client.calls)
			assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.delays, "one delay between two batches, none after the last")
			assert.Len(t, ledger.writes, 2)
			for id, portalID := range tc.portal {
				entry := ledger.entry(id)
				assert.Equal(t, enums.ControlStatusPosted, entry.status, id)
				assert.Equal(t, portalID, entry.portalID, id)
			}
			assert.Equal(t, 2, summary.Posted)
			assert.Equal(t, 2, summary.Batches)
			assert.Equal(t, 0, summary.Errors)
		})
	}
}

func TestRunRejectsInvalidCurrencyWithoutSubmitting(t *testing.T) {
	rows := append(orderRows("PO100", 1), orderRows("PO300", 1)...)
	rows[1]["CURRENCY"] = "MEX"
	ledger := newFakeLedger()
	client := &fakePortal{}

	summary, err := newTestEngine(t, ledger, client, 50, &sleepRecorder{}).Run(context.Background(), testTenant, translateAll(rows))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"PO100"}}, client.calls)
	entry := ledger.entry("PO300")
	assert.Equal(t, enums.ControlStatusError, entry.status)
	assert.Contains(t, entry.diagnostic, "currency")
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Posted)
}

func TestRunReportsEveryValidationProblem(t *testing.T) {
	rows := orderRows("PO1", 1)
	rows[0]["ADDRESS_STREET"] = ""
	rows[0]["LINES_QUANTITY"] = 0
	ledger := newFakeLedger()
	client := &fakePortal{}

	_, err := newTestEngine(t, ledger, client, 50, &sleepRecorder{}).Run(context.Background(), testTenant, translateAll(rows))
	require.NoError(t, err)

	assert.Empty(t, client.calls)
	diagnostic := ledger.entry("PO1").diagnostic
	assert.Contains(t, diagnostic, "addresses[0].street")
	assert.Contains(t, diagnostic, "lines[0].quantity")
}

func TestRunIsIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakePortal{}
	engine := newTestEngine(t, ledger, client, 1, &sleepRecorder{})
	orders := ordersFor("PO1", "PO2", "PO3")

	first, err := engine.Run(context.Background(), testTenant, orders)
	require.NoError(t, err)
	require.Equal(t, 3, first.Posted)
	require.Len(t, client.calls, 3)

	second, err := engine.Run(context.Background(), testTenant, ordersFor("PO1", "PO2", "PO3"))
	require.NoError(t, err)
	assert.Len(t, client.calls, 3, "second run submits nothing")
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 0, second.Posted)
	assert.Equal(t, 0, second.Batches)
}

func TestRunDuplicateRetriesOnceWithoutOffender(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakePortal{respond: func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
		if call == 1 {
			return nil, duplicateErr("PO2")
		}
		return perOrderSuccess(orders), nil
	}}

	summary, err := newTestEngine(t, ledger, client, 50, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor("PO1", "PO2", "PO3"))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"PO1", "PO2", "PO3"}, {"PO1", "PO3"}}, client.calls)
	assert.Equal(t, enums.ControlStatusDuplicate, ledger.entry("PO2").status)
	assert.Equal(t, enums.ControlStatusPosted, ledger.entry("PO1").status)
	assert.Equal(t, enums.ControlStatusPosted, ledger.entry("PO3").status)
	assert.Equal(t, 2, summary.Posted)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, []DuplicateReport{{ExternalID: "PO2", Batch: 1}}, summary.DuplicateDetails)
}

func TestRunSecondDuplicateEndsBatch(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakePortal{respond: func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
		if call == 1 {
			return nil, duplicateErr("PO1")
		}
		return nil, duplicateErr("PO3")
	}}

	summary, err := newTestEngine(t, ledger, client, 50, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor("PO1", "PO2", "PO3"))
	require.NoError(t, err)

	require.Len(t, client.calls, 2, "no third attempt")
	assert.Equal(t, enums.ControlStatusDuplicate, ledger.entry("PO1").status)
	assert.Equal(t, enums.ControlStatusDuplicate, ledger.entry("PO3").status)
	entry := ledger.entry("PO2")
	assert.Equal(t, enums.ControlStatusError, entry.status)
	assert.True(t, strings.HasPrefix(entry.diagnostic, "HTTP_409: "), entry.diagnostic)
	assert.Equal(t, 2, summary.Duplicates)
	assert.Equal(t, 1, summary.Errors)
}

func TestRunDuplicateOfOnlyOrderDoesNotResubmit(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakePortal{respond: func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
		return nil, duplicateErr(orders[0].ExternalID)
	}}

	summary, err := newTestEngine(t, ledger, client, 1, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor("PO1", "PO2"))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"PO1"}, {"PO2"}}, client.calls)
	assert.Equal(t, []DuplicateReport{{ExternalID: "PO1", Batch: 1}, {ExternalID: "PO2", Batch: 2}}, summary.DuplicateDetails)
}

func TestRunDuplicateNamingUnknownOrderFailsBatch(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakePortal{respond: func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
		return nil, duplicateErr("PO999")
	}}

	summary, err := newTestEngine(t, ledger, client, 50, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor("PO1"))
	require.NoError(t, err)
	assert.Len(t, client.calls, 1)
	assert.Equal(t, enums.ControlStatusError, ledger.entry("PO1").status)
	assert.Equal(t, 0, summary.Duplicates)
}

func TestRunBatchFailuresAreTagged(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		prefix string
	}{
		{
			name:   "timeout",
			err:    pkgerrors.Wrap(pkgerrors.CodeTimeout, context.DeadlineExceeded, "portal request timed out"),
			prefix: "TIMEOUT",
		},
		{
			name:   "network",
			err:    pkgerrors.Wrap(pkgerrors.CodeNetwork, errors.New("connection reset"), "portal request failed"),
			prefix: "NETWORK_ERROR",
		},
		{
			name: "server error",
			err: pkgerrors.Wrap(pkgerrors.CodeRemote, &portal.APIError{
				StatusCode: http.StatusInternalServerError,
				Body:       "upstream exploded",
			}, "portal rejected batch"),
			prefix: "HTTP_500: upstream exploded",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := newFakeLedger()
			client := &fakePortal{respond: func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
				return nil, tc.err
			}}

			summary, err := newTestEngine(t, ledger, client, 50, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor("PO1", "PO2"))
			require.NoError(t, err)

			assert.Len(t, client.calls, 1, "failures other than duplicates are not retried")
			for _, id := range []string{"PO1", "PO2"} {
				entry := ledger.entry(id)
				assert.Equal(t, enums.ControlStatusError, entry.status)
				assert.True(t, strings.HasPrefix(entry.diagnostic, tc.prefix), entry.diagnostic)
			}
			assert.Equal(t, 2, summary.Errors)
		})
	}
}

func TestRunPerOrderFailures(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakePortal{respond: func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
		return &portal.BatchResponse{OrdersStatus: []portal.OrderResult{
			{ExternalID: "PO1", ID: "p-1", Status: "SUCCESS"},
			{ExternalID: "PO2", Status: "ERROR", Error: &portal.ErrorBody{Code: "INVALID_PROVIDER", Description: "unknown provider"}},
		}}, nil
	}}

	summary, err := newTestEngine(t, ledger, client, 50, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor("PO1", "PO2", "PO3"))
	require.NoError(t, err)

	assert.Equal(t, "p-1", ledger.entry("PO1").portalID)
	assert.Equal(t, "INVALID_PROVIDER: unknown provider", ledger.entry("PO2").diagnostic)
	assert.Equal(t, enums.ControlStatusError, ledger.entry("PO3").status, "orders missing from the breakdown are errors")
	assert.Equal(t, 1, summary.Posted)
	assert.Equal(t, 2, summary.Errors)
}

func TestRunLedgerFailureDoesNotAbort(t *testing.T) {
	ledger := newFakeLedger()
	ledger.writeErr = func(externalID string, status enums.ControlStatus) error {
		if externalID == "PO1" {
			return errors.New("connection refused")
		}
		return nil
	}
	client := &fakePortal{}

	summary, err := newTestEngine(t, ledger, client, 1, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor("PO1", "PO2", "PO3"))
	require.NoError(t, err)

	assert.Len(t, client.calls, 3)
	assert.Equal(t, 3, summary.Posted)
	assert.Equal(t, 1, summary.LedgerFailures)
	assert.Equal(t, enums.ControlStatusPosted, ledger.entry("PO3").status)
}

func TestRunLedgerReadFailureHoldsOrderBack(t *testing.T) {
	ledger := newFakeLedger()
	ledger.readErr = func(externalID string) error {
		if externalID == "PO2" {
			return errors.New("timeout reading controls")
		}
		return nil
	}
	client := &fakePortal{}

	summary, err := newTestEngine(t, ledger, client, 50, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor("PO1", "PO2"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"PO1"}}, client.calls)
	assert.Equal(t, 1, summary.LedgerFailures)
}

func TestRunStopsWhenCancelledBetweenBatches(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakePortal{}
	sleeper := &sleepRecorder{err: context.Canceled}

	summary, err := newTestEngine(t, ledger, client, 1, sleeper).Run(context.Background(), testTenant, ordersFor("PO1", "PO2", "PO3"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, client.calls, 1)
	assert.Equal(t, 1, summary.Posted)
	assert.Equal(t, 1, summary.Batches)
}

func TestRunStableBatchCuts(t *testing.T) {
	client := &fakePortal{}
	ids := make([]string, 0, 7)
	for i := 1; i <= 7; i++ {
		ids = append(ids, fmt.Sprintf("PO%d", i))
	}

	_, err := newTestEngine(t, newFakeLedger(), client, 3, &sleepRecorder{}).Run(context.Background(), testTenant, ordersFor(ids...))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"PO1", "PO2", "PO3"}, {"PO4", "PO5", "PO6"}, {"PO7"}}, client.calls)
}

func TestRunRequiresDatabaseID(t *testing.T) {
	_, err := newTestEngine(t, newFakeLedger(), &fakePortal{}, 1, &sleepRecorder{}).Run(context.Background(), Tenant{}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewEngineDefaults(t *testing.T) {
	engine, err := NewEngine(newFakeLedger(), &fakePortal{}, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, engine.cfg.BatchSize)
	assert.Equal(t, DefaultSubmitTimeout, engine.cfg.SubmitTimeout)

	_, err = NewEngine(nil, &fakePortal{}, Config{})
	assert.Error(t, err)
	_, err = NewEngine(newFakeLedger(), nil, Config{})
	assert.Error(t, err)
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), 0))
}
