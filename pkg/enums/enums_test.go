package enums

import "testing"

func TestParseControlStatus(t *testing.T) {
	for _, raw := range []string{"POSTED", "ERROR", "DUPLICATE"} {
		status, err := ParseControlStatus(raw)
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		if !status.IsValid() || status.String() != raw {
			t.Fatalf("round trip mismatch for %s", raw)
		}
	}
	if _, err := ParseControlStatus("posted"); err == nil {
		t.Fatal("expected lower-case status to be rejected")
	}
}

func TestClosedSets(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
		got   bool
	}{
		{"open", true, PurchaseOrderStatus("OPEN").IsValid()},
		{"draft", false, PurchaseOrderStatus("DRAFT").IsValid()},
		{"pending review", true, AcceptanceStatus("PENDING_TO_REVIEW").IsValid()},
		{"shipping", true, AddressType("SHIPPING").IsValid()},
		{"home", false, AddressType("HOME").IsValid()},
		{"withheld", true, TaxType("WITHHELD").IsValid()},
		{"payment form transfer", true, CFDIPaymentForm("03").IsValid()},
		{"payment form unknown", false, CFDIPaymentForm("07").IsValid()},
		{"use G03", true, CFDIUse("G03").IsValid()},
		{"use empty", false, CFDIUse("").IsValid()},
		{"method PPD", true, CFDIPaymentMethod("PPD").IsValid()},
		{"method empty", false, CFDIPaymentMethod("").IsValid()},
	}
	for _, tc := range cases {
		if tc.got != tc.valid {
			t.Fatalf("%s: expected valid=%v", tc.name, tc.valid)
		}
	}
}
