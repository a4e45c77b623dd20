package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelmondragon/posync/internal/ledger"
	"github.com/angelmondragon/posync/internal/purchaseorders"
	"github.com/angelmondragon/posync/internal/rowsource"
	"github.com/angelmondragon/posync/internal/submission"
	"github.com/angelmondragon/posync/pkg/config"
	"github.com/angelmondragon/posync/pkg/db"
	"github.com/angelmondragon/posync/pkg/db/models"
	"github.com/angelmondragon/posync/pkg/enums"
	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"github.com/angelmondragon/posync/pkg/logger"
	"github.com/angelmondragon/posync/pkg/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "pipeline-test", Output: io.Discard})
}

func testTenant() config.TenantConfig {
	return config.TenantConfig{
		DatabaseID:      "COMP01",
		ERPDriver:       config.DriverSQLite,
		ERPDSN:          "unused",
		PortalTenantID:  "tenant-1",
		PortalAPIKey:    "key",
		PortalAPISecret: "secret",
	}
}

type fakeConn struct {
	closed bool
}

func (c *fakeConn) Raw(context.Context, string, ...any) *gorm.DB { return nil }
func (c *fakeConn) Close() error                                 { c.closed = true; return nil }

type fakeSource struct {
	rows []purchaseorders.FlatOrderRow
	err  error
}

func (s *fakeSource) FetchRows(context.Context, rowsource.Querier) ([]purchaseorders.FlatOrderRow, error) {
	return s.rows, s.err
}

type fakeSubmitter struct {
	tenant submission.Tenant
	orders []purchaseorders.Translated
	err    error
}

func (s *fakeSubmitter) Run(_ context.Context, tenant submission.Tenant, orders []purchaseorders.Translated) (submission.SyncSummary, error) {
	s.tenant = tenant
	s.orders = orders
	return submission.SyncSummary{DatabaseID: tenant.DatabaseID, Posted: len(orders)}, s.err
}

func newFakePipeline(t *testing.T, conn *fakeConn, source *fakeSource, submitter *fakeSubmitter) *Pipeline {
	t.Helper()
	p, err := New(Params{
		Logger: testLogger(),
		Connect: func(context.Context, config.TenantConfig) (ERPConn, error) {
			return conn, nil
		},
		Source:    source,
		Submitter: submitter,
	})
	require.NoError(t, err)
	return p
}

func flatRow(order string, line int) purchaseorders.FlatOrderRow {
	return purchaseorders.FlatOrderRow{
		"EXTERNAL_ID":       order,
		"STATUS":            "OPEN",
		"LINES_EXTERNAL_ID": fmt.Sprintf("%s-%d", order, line),
	}
}

func TestRunPurchaseOrderSyncAggregatesAndTranslates(t *testing.T) {
	conn := &fakeConn{}
	source := &fakeSource{rows: []purchaseorders.FlatOrderRow{
		flatRow("PO2", 1), flatRow("PO1", 1), flatRow("PO1", 2),
	}}
	submitter := &fakeSubmitter{}
	p := newFakePipeline(t, conn, source, submitter)

	summary, err := p.RunPurchaseOrderSync(context.Background(), testTenant())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Posted)
	assert.True(t, conn.closed)

	require.Len(t, submitter.orders, 2)
	assert.Equal(t, "PO1", submitter.orders[0].Order.ExternalID)
	assert.Len(t, submitter.orders[0].Order.Lines, 2)
	assert.Equal(t, "COMP01", submitter.tenant.DatabaseID)
	assert.Equal(t, portal.Credentials{TenantID: "tenant-1", APIKey: "key", APISecret: "secret"}, submitter.tenant.Credentials)
}

func TestRunPurchaseOrderSyncStopsOnSourceError(t *testing.T) {
	conn := &fakeConn{}
	submitter := &fakeSubmitter{}
	p := newFakePipeline(t, conn, &fakeSource{err: errors.New("query timeout")}, submitter)

	summary, err := p.RunPurchaseOrderSync(context.Background(), testTenant())
	require.Error(t, err)
	assert.Equal(t, "COMP01", summary.DatabaseID)
	assert.Nil(t, submitter.orders)
	assert.True(t, conn.closed)
}

func TestRunPurchaseOrderSyncWrapsConnectErrors(t *testing.T) {
	p, err := New(Params{
		Logger: testLogger(),
		Connect: func(context.Context, config.TenantConfig) (ERPConn, error) {
			return nil, errors.New("login failed")
		},
		Source:    &fakeSource{},
		Submitter: &fakeSubmitter{},
	})
	require.NoError(t, err)

	_, err = p.RunPurchaseOrderSync(context.Background(), testTenant())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)
	_, err = New(Params{Logger: testLogger()})
	assert.Error(t, err)
}

func TestTenantJobRunsHookOnlyOnSuccess(t *testing.T) {
	submitter := &fakeSubmitter{}
	p := newFakePipeline(t, &fakeConn{}, &fakeSource{rows: []purchaseorders.FlatOrderRow{flatRow("PO1", 1)}}, submitter)

	var marked []string
	hook := WithCompletionHook(func(_ context.Context, databaseID string, _ time.Time) error {
		marked = append(marked, databaseID)
		return nil
	})
	jobs := Jobs(p, []config.TenantConfig{testTenant()}, hook)
	require.Len(t, jobs, 1)
	assert.Equal(t, "po_sync:COMP01", jobs[0].Name())
	assert.Equal(t, "COMP01", jobs[0].Scope())

	require.NoError(t, jobs[0].Run(context.Background()))
	assert.Equal(t, []string{"COMP01"}, marked)

	submitter.err = context.Canceled
	assert.ErrorIs(t, jobs[0].Run(context.Background()), context.Canceled)
	assert.Len(t, marked, 1)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// nopCloseClient keeps the shared in-memory ERP database alive between runs.
type nopCloseClient struct {
	*db.Client
}

func (nopCloseClient) Close() error { return nil }

func openSQLite(t *testing.T, name string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", t.Name(), name)), &gorm.Config{})
	require.NoError(t, err)
	return conn
}

func seedERP(t *testing.T, conn *gorm.DB) {
	t.Helper()
	require.NoError(t, conn.Exec(`CREATE TABLE erp_rows (
  EXTERNAL_ID TEXT, STATUS TEXT, "DATE" TEXT, CURRENCY TEXT, PROVIDER_EXTERNAL_ID TEXT,
  SUBTOTAL REAL, TOTAL REAL, ADDRESS_STREET TEXT, ORDER_DATE INTEGER, LINE_NO INTEGER,
  LINES_EXTERNAL_ID TEXT, LINES_CODE TEXT, LINES_DESCRIPTION TEXT, LINES_QUANTITY REAL,
  LINES_PRICE REAL, LINES_SUBTOTAL REAL, LINES_TOTAL REAL
)`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO erp_rows VALUES
  ('PO1', 'OPEN', '2024-03-01', 'MXN', 'PROV-1', 100, 116, 'Av. Reforma 100', 20240301, 1, 'PO1-1', 'SKU-A', 'Tornillo', 2, 50, 100, 116),
  ('PO2', 'OPEN', '2024-03-02', 'MXN', 'PROV-1', 10, 11.6, 'Av. Reforma 100', 20240302, 1, 'PO2-1', 'SKU-B', 'Tuerca', 1, 10, 10, 11.6),
  ('PO3', 'OPEN', '2024-03-02', 'MEX', 'PROV-2', 10, 11.6, 'Av. Juarez 5', 20240302, 1, 'PO3-1', 'SKU-C', 'Arandela', 1, 10, 10, 11.6)`).Error)
}

func TestRunPurchaseOrderSyncEndToEnd(t *testing.T) {
	ctx := context.Background()
	erp := openSQLite(t, "erp")
	seedERP(t, erp)

	ledgerDB := openSQLite(t, "ledger")
	require.NoError(t, ledgerDB.AutoMigrate(&models.ControlRecord{}))
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(ledgerDB))
	require.NoError(t, err)

	queryFile := filepath.Join(t.TempDir(), "orders.sql")
	require.NoError(t, os.WriteFile(queryFile, []byte(
		"SELECT * FROM erp_rows WHERE ORDER_DATE >= @since_yyyymmdd ORDER BY EXTERNAL_ID, LINE_NO"), 0o600))
	source, err := rowsource.New(rowsource.Options{
		QueryFile:    queryFile,
		LookbackDays: 30,
		Now:          func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	var calls int
	client, err := portal.NewClient("http://portal.test", portal.WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			calls++
			var orders []portal.PurchaseOrder
			if err := json.NewDecoder(req.Body).Decode(&orders); err != nil {
				return nil, err
			}
			resp := portal.BatchResponse{}
			for _, order := range orders {
				resp.OrdersStatus = append(resp.OrdersStatus, portal.OrderResult{
					ExternalID: order.ExternalID,
					ID:         "portal-" + order.ExternalID,
					Status:     "SUCCESS",
				})
			}
			body, _ := json.Marshal(resp)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(bytes.NewReader(body)),
			}, nil
		}),
	}))
	require.NoError(t, err)

	engine, err := submission.NewEngine(ledgerSvc, client, submission.Config{BatchSize: 50},
		submission.WithSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	p, err := New(Params{
		Logger: testLogger(),
		Connect: func(context.Context, config.TenantConfig) (ERPConn, error) {
			return nopCloseClient{db.FromGorm(erp)}, nil
		},
		Source:     source,
		Translator: purchaseorders.NewTranslator(10),
		Submitter:  engine,
	})
	require.NoError(t, err)

	summary, err := p.RunPurchaseOrderSync(ctx, testTenant())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Posted)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, calls)

	posted, err := ledgerSvc.ListByStatus(ctx, "COMP01", enums.ControlStatusPosted, 10)
	require.NoError(t, err)
	require.Len(t, posted, 2)

	failed, err := ledgerSvc.ListByStatus(ctx, "COMP01", enums.ControlStatusError, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "PO3", failed[0].OrderExternalID)
	require.NotNil(t, failed[0].ResponseDetail)
	assert.Contains(t, *failed[0].ResponseDetail, "currency")

	second, err := p.RunPurchaseOrderSync(ctx, testTenant())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 1, second.Invalid)
	assert.Equal(t, 1, calls, "posted orders are never resubmitted")
}
