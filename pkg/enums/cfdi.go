package enums

// CFDI catalogs published by the Mexican tax authority. Orders only carry the codes; the
// invoice documents themselves are handled elsewhere.

// CFDIPaymentForm is a c_FormaPago code.
type CFDIPaymentForm string

var validCFDIPaymentForms = map[CFDIPaymentForm]struct{}{
	"01": {}, "02": {}, "03": {}, "04": {}, "05": {}, "06": {}, "08": {}, "12": {},
	"13": {}, "14": {}, "15": {}, "17": {}, "23": {}, "24": {}, "25": {}, "26": {},
	"27": {}, "28": {}, "29": {}, "30": {}, "31": {}, "99": {},
}

func (f CFDIPaymentForm) IsValid() bool {
	_, ok := validCFDIPaymentForms[f]
	return ok
}

// CFDIUse is a c_UsoCFDI code.
type CFDIUse string

var validCFDIUses = map[CFDIUse]struct{}{
	"G01": {}, "G02": {}, "G03": {},
	"I01": {}, "I02": {}, "I03": {}, "I04": {}, "I05": {}, "I06": {}, "I07": {}, "I08": {},
	"D01": {}, "D02": {}, "D03": {}, "D04": {}, "D05": {}, "D06": {}, "D07": {}, "D08": {}, "D09": {}, "D10": {},
	"S01": {}, "CP01": {}, "CN01": {},
}

func (u CFDIUse) IsValid() bool {
	_, ok := validCFDIUses[u]
	return ok
}

// CFDIPaymentMethod is a c_MetodoPago code.
type CFDIPaymentMethod string

const (
	CFDIPaymentMethodSingle       CFDIPaymentMethod = "PUE"
	CFDIPaymentMethodInstallments CFDIPaymentMethod = "PPD"
)

func (m CFDIPaymentMethod) IsValid() bool {
	return m == CFDIPaymentMethodSingle || m == CFDIPaymentMethodInstallments
}
