package submission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/posync/internal/purchaseorders"
	"github.com/angelmondragon/posync/pkg/enums"
	"github.com/angelmondragon/posync/pkg/portal"
)

type ledgerEntry struct {
	status     enums.ControlStatus
	portalID   string
	diagnostic string
}

type fakeLedger struct {
	mu       sync.Mutex
	entries  map[string]ledgerEntry
	writes   []string
	writeErr func(externalID string, status enums.ControlStatus) error
	readErr  func(externalID string) error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]ledgerEntry{}}
}

func ledgerKey(externalID, databaseID string) string {
	return databaseID + "/" + externalID
}

func (f *fakeLedger) HasPostedRecord(ctx context.Context, externalID, databaseID string) (bool, error) {
	if f.readErr != nil {
		if err := f.readErr(externalID); err != nil {
			return false, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[ledgerKey(externalID, databaseID)]
	return ok && entry.status == enums.ControlStatusPosted && entry.portalID != "", nil
}

func (f *fakeLedger) write(externalID, databaseID string, entry ledgerEntry) error {
	if f.writeErr != nil {
		if err := f.writeErr(externalID, entry.status); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, fmt.Sprintf("%s:%s", externalID, entry.status))
	key := ledgerKey(externalID, databaseID)
	if existing, ok := f.entries[key]; ok && existing.status == enums.ControlStatusPosted && entry.status != enums.ControlStatusPosted {
		return nil
	}
	f.entries[key] = entry
	return nil
}

func (f *fakeLedger) RecordSuccess(ctx context.Context, externalID, databaseID, portalID string) error {
	return f.write(externalID, databaseID, ledgerEntry{status: enums.ControlStatusPosted, portalID: portalID})
}

func (f *fakeLedger) RecordFailure(ctx context.Context, externalID, databaseID, diagnostic string) error {
	return f.write(externalID, databaseID, ledgerEntry{status: enums.ControlStatusError, diagnostic: diagnostic})
}

func (f *fakeLedger) RecordDuplicate(ctx context.Context, externalID, databaseID, diagnostic string) error {
	return f.write(externalID, databaseID, ledgerEntry{status: enums.ControlStatusDuplicate, diagnostic: diagnostic})
}

func (f *fakeLedger) entry(externalID string) ledgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[ledgerKey(externalID, testTenant.DatabaseID)]
}

type fakePortal struct {
	calls   [][]string
	respond func(call int, orders []portal.PurchaseOrder) (*portal.BatchResponse, error)
}

func (f *fakePortal) SubmitBatch(ctx context.Context, creds portal.Credentials, orders []portal.PurchaseOrder) (*portal.BatchResponse, error) {
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ExternalID)
	}
	f.calls = append(f.calls, ids)
	if f.respond == nil {
		return perOrderSuccess(orders), nil
	}
	return f.respond(len(f.calls), orders)
}

func perOrderSuccess(orders []portal.PurchaseOrder) *portal.BatchResponse {
	resp := &portal.BatchResponse{StatusCode: 200}
	for _, order := range orders {
		resp.OrdersStatus = append(resp.OrdersStatus, portal.OrderResult{
			ExternalID: order.ExternalID,
			ID:         "portal-" + order.ExternalID,
			Status:     "SUCCESS",
		})
	}
	return resp
}

type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

var testTenant = Tenant{
	DatabaseID:  "COMP01",
	Credentials: portal.Credentials{TenantID: "tenant-1", APIKey: "k", APISecret: "s"},
}

func orderRows(orderNumber string, lines int) []purchaseorders.FlatOrderRow {
	rows := make([]purchaseorders.FlatOrderRow, 0, lines)
	for i := 1; i <= lines; i++ {
		rows = append(rows, purchaseorders.FlatOrderRow{
			"EXTERNAL_ID":          orderNumber,
			"STATUS":               "OPEN",
			"DATE":                 "2024-03-01",
			"CURRENCY":             "MXN",
			"CFDI_PAYMENT_METHOD":  "",
			"REQUISITION_NUMBER":   0,
			"PROVIDER_EXTERNAL_ID": "PROV-001",
			"SUBTOTAL":             "100",
			"TOTAL":                "116",
			"ADDRESS_STREET":       "Av. Reforma 100",
			"LINES_EXTERNAL_ID":    fmt.Sprintf("%s-%d", orderNumber, i),
			"LINES_CODE":           "SKU",
			"LINES_DESCRIPTION":    "Item",
			"LINES_QUANTITY":       "1",
			"LINES_PRICE":          "100",
			"LINES_SUBTOTAL":       "100",
			"LINES_TOTAL":          "116",
		})
	}
	return rows
}

func translateAll(rows []purchaseorders.FlatOrderRow) []purchaseorders.Translated {
	aggregated := purchaseorders.Aggregate(rows)
	out := make([]purchaseorders.Translated, 0, len(aggregated))
	for _, order := range aggregated {
		out = append(out, purchaseorders.Translate(order))
	}
	return out
}

func ordersFor(ids ...string) []purchaseorders.Translated {
	var rows []purchaseorders.FlatOrderRow
	for _, id := range ids {
		rows = append(rows, orderRows(id, 1)...)
	}
	return translateAll(rows)
}
