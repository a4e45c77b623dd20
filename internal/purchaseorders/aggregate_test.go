package purchaseorders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateGroupsByTrimmedKeyAndSorts(t *testing.T) {
	rows := append(orderRows("PO200", 2), orderRows("PO100", 3)...)
	// A stray row for PO200 after PO100's rows still joins its group.
	extra := orderRows("PO200", 3)[2]
	rows = append(rows, extra)

	orders := Aggregate(rows)

	require.Len(t, orders, 2)
	assert.Equal(t, "PO100", orders[0].Key)
	assert.Equal(t, "PO200", orders[1].Key)
	require.Len(t, orders[0].Lines, 3)
	require.Len(t, orders[1].Lines, 3)

	for i, want := range []string{"PO200-1", "PO200-2", "PO200-3"} {
		assert.Equal(t, want, orders[1].Lines[i]["external_id"], "line order follows row order")
	}
}

func TestAggregateNormalizesColumnNamesAndValues(t *testing.T) {
	orders := Aggregate(orderRows("PO1", 1))
	require.Len(t, orders, 1)

	header := orders[0].Header
	assert.Equal(t, "PO1", header["external_id"])
	assert.Equal(t, "OPEN", header["status"])
	assert.NotContains(t, header, "lines_code")
	assert.NotContains(t, header, "LINES_CODE")

	line := orders[0].Lines[0]
	assert.Equal(t, "Item 1", line["description"], "strings are trimmed")
	assert.Equal(t, "SKU-1", line["code"])
}

func TestAggregateKeepsFirstRowHeader(t *testing.T) {
	rows := orderRows("PO1", 2)
	rows[1]["WAREHOUSE"] = "ALM9"

	orders := Aggregate(rows)
	require.Len(t, orders, 1)
	assert.Equal(t, "ALM1", orders[0].Header["warehouse"])
}

func TestAggregateEmptyKeyIsStillAGroup(t *testing.T) {
	rows := orderRows("PO1", 1)
	blank := orderRows("", 1)
	blank[0]["EXTERNAL_ID"] = nil
	rows = append(rows, blank...)

	orders := Aggregate(rows)
	require.Len(t, orders, 2)
	assert.Equal(t, "", orders[0].Key)
	assert.Equal(t, "PO1", orders[1].Key)
}

func TestAggregateOrderWithoutLines(t *testing.T) {
	rows := orderRows("PO1", 1)
	for column := range rows[0] {
		if len(column) > len(linePrefix) && column[:len(linePrefix)] == "LINES_" {
			rows[0][column] = nil
		}
	}

	orders := Aggregate(rows)
	require.Len(t, orders, 1, "an order without lines is kept for validation to reject")
	assert.Empty(t, orders[0].Lines)
}

func TestAggregateEmptyInput(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}
