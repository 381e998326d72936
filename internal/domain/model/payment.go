package model

import "time"

// Payment is a settled incoming Lightning payment as reported by the host
// platform's ledger. FiatCurrency and FiatAmount come from the exchange-rate
// snapshot taken when the invoice was paid; payments without fiat data cannot
// be pushed and are skipped.
type Payment struct {
	PaymentHash  string
	WalletID     string
	AmountMsat   int64
	Memo         string
	FiatCurrency string
	FiatAmount   float64
	SettledAt    time.Time
}

// HasFiat reports whether the payment carries a usable fiat valuation.
func (p *Payment) HasFiat() bool {
	return p.FiatCurrency != "" && p.FiatAmount > 0
}
