package purchaseorders

import "fmt"

// orderRows returns one valid row per line, header columns repeated, as the ERP query yields them.
func orderRows(orderNumber string, lines int) []FlatOrderRow {
	rows := make([]FlatOrderRow, 0, lines)
	for i := 1; i <= lines; i++ {
		rows = append(rows, FlatOrderRow{
			"EXTERNAL_ID":          " " + orderNumber + " ",
			"STATUS":               "OPEN",
			"DATE":                 "2024-03-01 00:00:00.000",
			"DELIVERY_DATE":        "2024-03-15",
			"CURRENCY":             "mxn",
			"CFDI_PAYMENT_FORM":    "03",
			"CFDI_USE":             "G03",
			"CFDI_PAYMENT_METHOD":  "",
			"REQUISITION_NUMBER":   int64(0),
			"PROVIDER_EXTERNAL_ID": "PROV-001",
			"SUBTOTAL":             "200.00",
			"TOTAL":                "232.004",
			"VAT_SUM":              32.0,
			"WITHHOLD_TAX_SUM":     "0",
			"ADDRESS_STREET":       "Av. Reforma 100",
			"ADDRESS_CITY":         "CDMX",
			"ADDRESS_ZIP_CODE":     "06600",
			"WAREHOUSE":            "ALM1",
			"LINES_EXTERNAL_ID":    fmt.Sprintf("%s-%d", orderNumber, i),
			"LINES_CODE":           fmt.Sprintf("SKU-%d", i),
			"LINES_DESCRIPTION":    fmt.Sprintf("Item %d ", i),
			"LINES_QUANTITY":       "2",
			"LINES_PRICE":          "50",
			"LINES_SUBTOTAL":       "100",
			"LINES_TOTAL":          "116",
			"LINES_VAT_CODE":       "002",
			"LINES_VAT_RATE":       "0.16",
			"LINES_VAT_AMOUNT":     "16",
		})
	}
	return rows
}
