package rowsource

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/posync/internal/purchaseorders"
	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"gorm.io/gorm"
)

//go:embed queries/sage300_purchase_orders.sql
var sage300Query string

// DefaultLookbackDays limits the query to recent orders when no window is configured.
const DefaultLookbackDays = 30

// Querier runs a raw query against one ERP database. *db.Client satisfies it.
type Querier interface {
	Raw(ctx context.Context, query string, args ...any) *gorm.DB
}

type Options struct {
	// QueryFile replaces the built-in Sage 300 query. It must return the same column aliases
	// and may use the @since_date and @since_yyyymmdd parameters.
	QueryFile    string
	LookbackDays int
	Now          func() time.Time
}

// Source fetches flat purchase order rows, ordered by order number then line sequence.
type Source struct {
	query        string
	lookbackDays int
	now          func() time.Time
}

func New(opts Options) (*Source, error) {
	query := sage300Query
	if path := strings.TrimSpace(opts.QueryFile); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read orders query %s: %w", path, err)
		}
		query = string(raw)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("orders query is empty")
	}
	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Source{query: query, lookbackDays: lookback, now: now}, nil
}

// Since returns the first calendar day covered by the lookback window.
func (s *Source) Since() time.Time {
	year, month, day := s.now().AddDate(0, 0, -s.lookbackDays).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FetchRows runs the orders query. Filtering by status and dates is the query's business.
func (s *Source) FetchRows(ctx context.Context, conn Querier) ([]purchaseorders.FlatOrderRow, error) {
	if conn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "erp connection required")
	}
	since := s.Since()
	yyyymmdd, _ := strconv.Atoi(since.Format("20060102"))

	var scanned []map[string]any
	err := conn.Raw(ctx, s.query, map[string]any{
		"since_date":     since,
		"since_yyyymmdd": yyyymmdd,
	}).Scan(&scanned).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query erp purchase orders")
	}

	rows := make([]purchaseorders.FlatOrderRow, 0, len(scanned))
	for _, row := range scanned {
		rows = append(rows, purchaseorders.FlatOrderRow(row))
	}
	return rows, nil
}
