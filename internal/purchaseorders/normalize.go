package purchaseorders

import "github.com/angelmondragon/posync/pkg/portal"

// NormalizeSentinels clears the ERP's "not set" placeholders: an empty cfdi_payment_method and
// a zero requisition_number become absent fields.
func NormalizeSentinels(order *portal.PurchaseOrder) {
	if order == nil {
		return
	}
	if order.CFDIPaymentMethod != nil && *order.CFDIPaymentMethod == "" {
		order.CFDIPaymentMethod = nil
	}
	if order.RequisitionNumber != nil && *order.RequisitionNumber == 0 {
		order.RequisitionNumber = nil
	}
}
