package model

// XeroAccountRef is a chart-of-accounts entry projected for select inputs.
// Reference data fetched from Xero per session, never persisted.
type XeroAccountRef struct {
	Value string `json:"value"` // Account code, falling back to the account id.
	Label string `json:"label"`
	Type  string `json:"type"`
}

// XeroBankAccountRef is a bank account projected for select inputs.
type XeroBankAccountRef struct {
	Value string `json:"value"` // Xero AccountID (GUID).
	Label string `json:"label"`
}

// BankTransaction is the payload for creating a RECEIVE bank transaction in
// Xero. One line item per Lightning payment.
type BankTransaction struct {
	ContactName   string
	BankAccountID string
	Description   string
	UnitAmount    float64
	AccountCode   string
	TaxType       string // Empty means omit, letting the account default apply.
	Reference     string
	CurrencyCode  string
	Date          string // ISO 8601, seconds precision, UTC.
}
