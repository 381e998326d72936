package model

import "time"

// Credential is the OAuth2 token pair plus the Xero organisation it is bound
// to. One credential exists per installation; it is created by the OAuth
// callback and rotated only by token refresh.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	TenantID     string
	UpdatedAt    time.Time
}

// ExpiresWithin reports whether the access token expires inside the given
// safety margin from now. A token inside the margin must be refreshed before use.
func (c *Credential) ExpiresWithin(margin time.Duration) bool {
	return !c.TokenExpiry.After(time.Now().Add(margin))
}
