package enums

// PurchaseOrderStatus is the portal-side lifecycle state of an order.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusOpen      PurchaseOrderStatus = "OPEN"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "CANCELLED"
	PurchaseOrderStatusGenerated PurchaseOrderStatus = "GENERATED"
	PurchaseOrderStatusClosed    PurchaseOrderStatus = "CLOSED"
)

var validPurchaseOrderStatuses = []PurchaseOrderStatus{
	PurchaseOrderStatusOpen,
	PurchaseOrderStatusCancelled,
	PurchaseOrderStatusGenerated,
	PurchaseOrderStatusClosed,
}

func (s PurchaseOrderStatus) IsValid() bool {
	for _, candidate := range validPurchaseOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// AcceptanceStatus is the provider's answer to an order.
type AcceptanceStatus string

const (
	AcceptanceStatusAccepted        AcceptanceStatus = "ACCEPTED"
	AcceptanceStatusRefused         AcceptanceStatus = "REFUSED"
	AcceptanceStatusPendingToReview AcceptanceStatus = "PENDING_TO_REVIEW"
)

var validAcceptanceStatuses = []AcceptanceStatus{
	AcceptanceStatusAccepted,
	AcceptanceStatusRefused,
	AcceptanceStatusPendingToReview,
}

func (s AcceptanceStatus) IsValid() bool {
	for _, candidate := range validAcceptanceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

type AddressType string

const (
	AddressTypeBilling  AddressType = "BILLING"
	AddressTypeShipping AddressType = "SHIPPING"
)

func (t AddressType) IsValid() bool {
	return t == AddressTypeBilling || t == AddressTypeShipping
}

// TaxType separates transferred taxes (VAT) from withheld taxes.
type TaxType string

const (
	TaxTypeTransferred TaxType = "TRANSFERRED"
	TaxTypeWithheld    TaxType = "WITHHELD"
)

func (t TaxType) IsValid() bool {
	return t == TaxTypeTransferred || t == TaxTypeWithheld
}
