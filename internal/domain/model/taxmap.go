package model

// taxTypeFor maps each tax rate selection to the settings field holding the
// organisation's Xero tax type code. Provider-side code changes only require
// updating this table.
var taxTypeFor = map[TaxRate]func(*Settings) string{
	TaxRateNone:     func(*Settings) string { return "" },
	TaxRateStandard: func(s *Settings) string { return s.XeroTaxStandard },
	TaxRateZero:     func(s *Settings) string { return s.XeroTaxZero },
	TaxRateExempt:   func(s *Settings) string { return s.XeroTaxExempt },
}

// TaxTypeFor resolves the Xero tax type code for a tax rate selection.
// An empty result means the line item omits TaxType and the account's default
// rate applies.
func (s *Settings) TaxTypeFor(rate TaxRate) string {
	if f, ok := taxTypeFor[rate]; ok {
		return f(s)
	}
	return ""
}
