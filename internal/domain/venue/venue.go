package venue

import (
	"strings"
	"time"

	"github.com/example/bookhub/internal/domain/category"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending:
		return true
	}
	return false
}

type SyncStatus string

const (
	SyncActive SyncStatus = "active"
	SyncPaused SyncStatus = "paused"
	SyncError  SyncStatus = "error"
)

func (s SyncStatus) Valid() bool {
	switch s {
	case SyncActive, SyncPaused, SyncError:
		return true
	}
	return false
}

// Venue is a bookable business independent of the platforms that list it.
type Venue struct {
	ID       string            `json:"venue_id"`
	Name     string            `json:"name"`
	Category category.Category `json:"category"`
	Address  string            `json:"address,omitempty"`
	City     string            `json:"city,omitempty"`
	Country  string            `json:"country,omitempty"`
	Domain   string            `json:"domain,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Status   Status            `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderLink lists a venue on one provider. A venue has at most one link
// per provider.
type ProviderLink struct {
	VenueID       string     `json:"venue_id"`
	Provider      string     `json:"provider"`
	ExternalID    string     `json:"external_id"`
	CredentialRef string     `json:"credential_ref,omitempty"`
	SyncStatus    SyncStatus `json:"sync_status"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (l ProviderLink) Active() bool { return l.SyncStatus == SyncActive }

// NormalizeDomain lower-cases a website domain and strips the scheme, a
// leading "www." and any trailing slash. It does not do partial matching.
func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimRight(d, "/")
}
