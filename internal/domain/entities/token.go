package entities

import "time"

// ProviderToken is the stored upstream credential state for one
// service identity. Only the token lifecycle service writes it.
type ProviderToken struct {
	Identity     string    `json:"identity"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Endpoint     string    `json:"endpoint"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token is expired, with the given
// safety skew subtracted from the recorded expiry.
func (t *ProviderToken) Expired(now time.Time, skew time.Duration) bool {
	return !now.Before(t.ExpiresAt.Add(-skew))
}
