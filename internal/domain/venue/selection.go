package venue

import "sort"

// ChooseLink picks the link a venue is routed through. Only links with an
// active sync status are eligible. Among those the most recently synced link
// wins, a link that has synced beats one that never has, and remaining ties
// go to the earliest registered link, then to provider name.
func ChooseLink(links []ProviderLink) (ProviderLink, bool) {
	eligible := make([]ProviderLink, 0, len(links))
	for _, l := range links {
		if l.Active() {
			eligible = append(eligible, l)
		}
	}
	if len(eligible) == 0 {
		return ProviderLink{}, false
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return linkBefore(eligible[i], eligible[j])
	})
	return eligible[0], true
}

func linkBefore(a, b ProviderLink) bool {
	switch {
	case a.LastSyncAt != nil && b.LastSyncAt == nil:
		return true
	case a.LastSyncAt == nil && b.LastSyncAt != nil:
		return false
	case a.LastSyncAt != nil && !a.LastSyncAt.Equal(*b.LastSyncAt):
		return a.LastSyncAt.After(*b.LastSyncAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Provider < b.Provider
}
