package reservation

const (
	ProviderDemo      = "demo"
	ProviderZenchef   = "zenchef"
	ProviderOpenTable = "opentable"
	ProviderResy      = "resy"
)

// Mode is picked once, at construction, from credential presence.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeLive Mode = "live"
)

// Confirmation statuses reported by adapters.
const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
)

// WithinExternalIDs reports whether id passes the SearchQuery restriction.
func (q SearchQuery) WithinExternalIDs(id string) bool {
	if len(q.ExternalIDs) == 0 {
		return true
	}
	for _, e := range q.ExternalIDs {
		if e == id {
			return true
		}
	}
	return false
}
