package purchaseorders

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/posync/pkg/enums"
	"github.com/angelmondragon/posync/pkg/portal"
	"github.com/angelmondragon/posync/pkg/types"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// DefaultMetadataMaxIndex is the highest metadata_key_N scanned when no bound is configured.
const DefaultMetadataMaxIndex = 50

// Translated is a portal document plus the coercion problems met while building it.
// Coercion problems are reported by Validate together with schema violations.
type Translated struct {
	Order    portal.PurchaseOrder
	coercion ValidationErrors
}

// Translator maps aggregated orders onto the portal document shape.
type Translator struct {
	metadataMaxIndex int
}

func NewTranslator(metadataMaxIndex int) *Translator {
	if metadataMaxIndex <= 0 {
		metadataMaxIndex = DefaultMetadataMaxIndex
	}
	return &Translator{metadataMaxIndex: metadataMaxIndex}
}

// Translate uses the default metadata bound.
func Translate(order AggregatedOrder) Translated {
	return NewTranslator(DefaultMetadataMaxIndex).Translate(order)
}

// Translate builds the document for one order. Optional text defaults to "", optional numbers
// to 0 and optional arrays to [], never null.
func (t *Translator) Translate(order AggregatedOrder) Translated {
	c := &coercer{}
	h := order.Header

	paymentMethod := enums.CFDIPaymentMethod(strings.ToUpper(textValue(h["cfdi_payment_method"])))
	requisition := c.integer("requisition_number", h["requisition_number"])

	acceptance := enums.AcceptanceStatus(strings.ToUpper(textValue(h["acceptance_status"])))
	if acceptance == "" {
		acceptance = enums.AcceptanceStatusAccepted
	}

	exchangeRate := c.number("exchange_rate", h["exchange_rate"])
	if exchangeRate.Decimal().IsZero() {
		exchangeRate = types.NewNumber(decimal.NewFromInt(1))
	}

	doc := portal.PurchaseOrder{
		ExternalID:         order.Key,
		Status:             enums.PurchaseOrderStatus(strings.ToUpper(textValue(h["status"]))),
		AcceptanceStatus:   acceptance,
		Date:               types.ToDate(h["date"]),
		DeliveryDate:       types.ToDate(h["delivery_date"]),
		Currency:           strings.ToUpper(textValue(h["currency"])),
		ExchangeRate:       exchangeRate,
		CFDIPaymentForm:    enums.CFDIPaymentForm(textValue(h["cfdi_payment_form"])),
		CFDIUse:            enums.CFDIUse(strings.ToUpper(textValue(h["cfdi_use"]))),
		CFDIPaymentMethod:  &paymentMethod,
		Comments:           textValue(h["comments"]),
		Addresses:          []portal.Address{shippingAddress(h)},
		Lines:              make([]portal.Line, 0, len(order.Lines)),
		Metadata:           t.metadata(h),
		Subtotal:           c.money("subtotal", h["subtotal"]),
		Total:              c.money("total", h["total"]),
		VATSum:             c.money("vat_sum", h["vat_sum"]),
		WithholdTaxSum:     c.money("withhold_tax_sum", h["withhold_tax_sum"]),
		ProviderExternalID: textValue(h["provider_external_id"]),
		RequisitionNumber:  &requisition,
		Warehouse:          textValue(h["warehouse"]),
	}

	for i, raw := range order.Lines {
		doc.Lines = append(doc.Lines, translateLine(c.at(fmt.Sprintf("lines[%d].", i)), raw))
	}

	return Translated{Order: doc, coercion: c.errs}
}

// shippingAddress builds the single address the ERP carries per order.
func shippingAddress(h map[string]any) portal.Address {
	return portal.Address{
		Type:           enums.AddressTypeShipping,
		Street:         textValue(h["address_street"]),
		ExteriorNumber: textValue(h["address_exterior_number"]),
		InteriorNumber: textValue(h["address_interior_number"]),
		Neighborhood:   textValue(h["address_neighborhood"]),
		City:           textValue(h["address_city"]),
		State:          textValue(h["address_state"]),
		Country:        textValue(h["address_country"]),
		ZipCode:        textValue(h["address_zip_code"]),
	}
}

// metadata pairs metadata_key_N with metadata_value_N for N in [1, max]. Gaps are skipped and
// pairs with a null or empty key are dropped.
func (t *Translator) metadata(h map[string]any) []portal.MetadataEntry {
	entries := make([]portal.MetadataEntry, 0)
	for n := 1; n <= t.metadataMaxIndex; n++ {
		key := textValue(h[fmt.Sprintf("metadata_key_%d", n)])
		if key == "" {
			continue
		}
		entries = append(entries, portal.MetadataEntry{
			Key:   key,
			Value: textValue(h[fmt.Sprintf("metadata_value_%d", n)]),
		})
	}
	return entries
}

func translateLine(c *coercer, raw map[string]any) portal.Line {
	return portal.Line{
		ExternalID:       textValue(raw["external_id"]),
		Code:             textValue(raw["code"]),
		Description:      textValue(raw["description"]),
		UnitOfMeasure:    textValue(raw["unit_of_measure"]),
		Quantity:         c.number("quantity", raw["quantity"]),
		Price:            c.money("price", raw["price"]),
		Subtotal:         c.money("subtotal", raw["subtotal"]),
		Total:            c.money("total", raw["total"]),
		VATTaxes:         lineTax(c, raw, "vat", enums.TaxTypeTransferred),
		WithholdingTaxes: lineTax(c, raw, "withholding", enums.TaxTypeWithheld),
		Comments:         textValue(raw["comments"]),
	}
}

// lineTax reads the <prefix>_code, _external_code, _rate and _amount columns. A line carries at
// most one tax of each kind; when every column is empty the tax is omitted.
func lineTax(c *coercer, raw map[string]any, prefix string, taxType enums.TaxType) []portal.Tax {
	code := textValue(raw[prefix+"_code"])
	externalCode := textValue(raw[prefix+"_external_code"])
	rateRaw, amountRaw := raw[prefix+"_rate"], raw[prefix+"_amount"]
	if code == "" && externalCode == "" && isBlank(rateRaw) && isBlank(amountRaw) {
		return []portal.Tax{}
	}
	tc := c.at(prefix + "_taxes[0].")
	return []portal.Tax{{
		Type:         taxType,
		Code:         code,
		ExternalCode: externalCode,
		Rate:         tc.number("rate", rateRaw),
		Amount:       tc.money("amount", amountRaw),
	}}
}

// textValue trims and NFC-normalizes a scanned value so length limits count composed characters.
func textValue(v any) string {
	s := types.ToString(v)
	if s == "" {
		return s
	}
	return norm.NFC.String(s)
}

func isBlank(v any) bool {
	return types.ToString(v) == ""
}

// coercer turns loosely typed SQL values into numbers and remembers every value it could not read.
type coercer struct {
	prefix string
	errs   ValidationErrors
	parent *coercer
}

func (c *coercer) at(prefix string) *coercer {
	return &coercer{prefix: c.prefix + prefix, parent: c.root()}
}

func (c *coercer) root() *coercer {
	if c.parent != nil {
		return c.parent
	}
	return c
}

func (c *coercer) fail(field, message string) {
	root := c.root()
	root.errs = append(root.errs, FieldError{Path: c.prefix + field, Message: message})
}

func (c *coercer) decimal(field string, v any) decimal.Decimal {
	d, err := types.ToDecimal(v)
	if err != nil {
		c.fail(field, fmt.Sprintf("must be numeric, got %q", types.ToString(v)))
		return decimal.Zero
	}
	return d
}

func (c *coercer) money(field string, v any) types.Money {
	return types.NewMoney(c.decimal(field, v))
}

func (c *coercer) number(field string, v any) types.Number {
	return types.NewNumber(c.decimal(field, v))
}

func (c *coercer) integer(field string, v any) int {
	d := c.decimal(field, v)
	if !d.Equal(d.Truncate(0)) {
		c.fail(field, fmt.Sprintf("must be an integer, got %s", d.String()))
		return 0
	}
	return int(d.IntPart())
}
