package portal

import (
	"github.com/angelmondragon/posync/pkg/enums"
	"github.com/angelmondragon/posync/pkg/types"
)

// PurchaseOrder is the document the portal accepts in a batch. The validate tags describe the
// portal's contract; they are enforced before submission.
type PurchaseOrder struct {
	ExternalID         string                    `json:"external_id" validate:"required,max=100"`
	Status             enums.PurchaseOrderStatus `json:"status" validate:"required,enum"`
	AcceptanceStatus   enums.AcceptanceStatus    `json:"acceptance_status" validate:"required,enum"`
	Date               string                    `json:"date" validate:"required,datetime=2006-01-02"`
	DeliveryDate       string                    `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	Currency           string                    `json:"currency" validate:"required,iso4217"`
	ExchangeRate       types.Number              `json:"exchange_rate" validate:"gte=0"`
	CFDIPaymentForm    enums.CFDIPaymentForm     `json:"cfdi_payment_form" validate:"omitempty,enum"`
	CFDIUse            enums.CFDIUse             `json:"cfdi_use" validate:"omitempty,enum"`
	CFDIPaymentMethod  *enums.CFDIPaymentMethod  `json:"cfdi_payment_method,omitempty" validate:"omitnil,enum"`
	Comments           string                    `json:"comments" validate:"max=1000"`
	Addresses          []Address                 `json:"addresses" validate:"required,min=1,dive"`
	Lines              []Line                    `json:"lines" validate:"required,min=1,dive"`
	Metadata           []MetadataEntry           `json:"metadata" validate:"dive"`
	Subtotal           types.Money               `json:"subtotal" validate:"gte=0"`
	Total              types.Money               `json:"total" validate:"gte=0"`
	VATSum             types.Money               `json:"vat_sum" validate:"gte=0"`
	WithholdTaxSum     types.Money               `json:"withhold_tax_sum" validate:"gte=0"`
	ProviderExternalID string                    `json:"provider_external_id" validate:"required,max=50"`
	RequisitionNumber  *int                      `json:"requisition_number,omitempty" validate:"omitnil,gt=0"`
	Warehouse          string                    `json:"warehouse"`
}

type Address struct {
	Type           enums.AddressType `json:"type" validate:"required,enum"`
	Street         string            `json:"street" validate:"required,max=250"`
	ExteriorNumber string            `json:"exterior_number"`
	InteriorNumber string            `json:"interior_number"`
	Neighborhood   string            `json:"neighborhood"`
	City           string            `json:"city"`
	State          string            `json:"state"`
	Country        string            `json:"country"`
	ZipCode        string            `json:"zip_code" validate:"omitempty,zip5"`
}

type Line struct {
	ExternalID       string       `json:"external_id" validate:"required"`
	Code             string       `json:"code" validate:"required"`
	Description      string       `json:"description" validate:"required,max=250"`
	UnitOfMeasure    string       `json:"unit_of_measure"`
	Quantity         types.Number `json:"quantity" validate:"gt=0"`
	Price            types.Money  `json:"price" validate:"gte=0"`
	Subtotal         types.Money  `json:"subtotal" validate:"gte=0"`
	Total            types.Money  `json:"total" validate:"gte=0"`
	VATTaxes         []Tax        `json:"vat_taxes" validate:"dive"`
	WithholdingTaxes []Tax        `json:"withholding_taxes" validate:"dive"`
	Comments         string       `json:"comments"`
}

type Tax struct {
	Type         enums.TaxType `json:"type" validate:"required,enum"`
	Code         string        `json:"code" validate:"required"`
	ExternalCode string        `json:"external_code"`
	Rate         types.Number  `json:"rate" validate:"gte=0"`
	Amount       types.Money   `json:"amount" validate:"gte=0"`
}

type MetadataEntry struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

// Credentials identify one portal tenant.
type Credentials struct {
	TenantID  string
	APIKey    string
	APISecret string
}

// BatchResponse is a 2xx answer to a batch submission. Either OrdersStatus is populated or
// the portal only acknowledged the batch as a whole.
type BatchResponse struct {
	OrdersStatus []OrderResult `json:"ordersStatus"`
	AckID        string        `json:"id"`
	StatusCode   int           `json:"-"`
	RequestID    string        `json:"-"`
}

// HasPerOrderStatus reports whether the portal answered order by order.
func (r *BatchResponse) HasPerOrderStatus() bool {
	return r != nil && len(r.OrdersStatus) > 0
}

// AckRef identifies a bulk acknowledgement, falling back to the request id.
func (r *BatchResponse) AckRef() string {
	if r == nil {
		return ""
	}
	if r.AckID != "" {
		return r.AckID
	}
	return r.RequestID
}

// OrderResult is the portal's verdict on one order of a batch.
type OrderResult struct {
	ExternalID string     `json:"external_id"`
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Error      *ErrorBody `json:"error,omitempty"`
}

// Succeeded reports whether the order was created and assigned a portal id.
func (r OrderResult) Succeeded() bool {
	if r.Error != nil || r.ID == "" {
		return false
	}
	switch r.Status {
	case "ERROR", "FAILED", "REJECTED":
		return false
	}
	return true
}

// Detail is the diagnostic stored for a failed order.
func (r OrderResult) Detail() string {
	if r.Error != nil {
		return r.Error.String()
	}
	if r.Status != "" {
		return "portal status " + r.Status
	}
	return "portal returned no id"
}

// ErrorBody is the portal's error envelope.
type ErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func (e ErrorBody) text() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Message
}

func (e ErrorBody) String() string {
	switch {
	case e.Code != "" && e.text() != "":
		return e.Code + ": " + e.text()
	case e.Code != "":
		return e.Code
	default:
		return e.text()
	}
}
