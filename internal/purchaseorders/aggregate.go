package purchaseorders

import (
	"sort"
	"strings"
)

const (
	// OrderKeyColumn groups rows into orders. Column names are matched case-insensitively.
	OrderKeyColumn = "external_id"
	linePrefix     = "lines_"
)

// FlatOrderRow is one query row: the order header columns repeated next to the LINES_* columns
// of a single line.
type FlatOrderRow map[string]any

// AggregatedOrder is one order folded from its rows. Header and line column names are
// lower-cased; string values are trimmed.
type AggregatedOrder struct {
	Key    string
	Header map[string]any
	Lines  []map[string]any
}

// Aggregate groups rows by trimmed order number. Header columns come from the first row of
// each group and lines keep row-arrival order. The result is sorted by key; an empty key is
// still a group.
func Aggregate(rows []FlatOrderRow) []AggregatedOrder {
	orders := make([]AggregatedOrder, 0)
	index := make(map[string]int)

	for _, row := range rows {
		header, line := splitRow(row)
		key := textValue(header[OrderKeyColumn])

		pos, ok := index[key]
		if !ok {
			header[OrderKeyColumn] = key
			orders = append(orders, AggregatedOrder{Key: key, Header: header})
			pos = len(orders) - 1
			index[key] = pos
		}
		if hasValues(line) {
			orders[pos].Lines = append(orders[pos].Lines, line)
		}
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Key < orders[j].Key
	})
	return orders
}

func splitRow(row FlatOrderRow) (map[string]any, map[string]any) {
	header := make(map[string]any, len(row))
	line := make(map[string]any)
	for column, value := range row {
		name := strings.ToLower(strings.TrimSpace(column))
		if s, ok := value.(string); ok {
			value = strings.TrimSpace(s)
		}
		if strings.HasPrefix(name, linePrefix) {
			line[strings.TrimPrefix(name, linePrefix)] = value
			continue
		}
		header[name] = value
	}
	return header, line
}

// hasValues is false for the all-NULL line columns an outer join yields for an order
// without lines.
func hasValues(line map[string]any) bool {
	for _, value := range line {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			if v != "" {
				return true
			}
		case []byte:
			if len(v) > 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}
