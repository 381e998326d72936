package model

import "time"

// Settings holds the Xero app registration and the organisation's tax type
// codes. A single record exists per installation.
type Settings struct {
	XeroClientID     string
	XeroClientSecret string
	XeroTaxStandard  string
	XeroTaxZero      string
	XeroTaxExempt    string
	UpdatedAt        time.Time
}

// HasClientCredentials reports whether both client id and secret are set.
// The OAuth flow cannot start without them.
func (s *Settings) HasClientCredentials() bool {
	return s.XeroClientID != "" && s.XeroClientSecret != ""
}
