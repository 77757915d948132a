package insights

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/powerbrief/scorecard/internal/core/metric"
)

// Filters narrows an insights query by entity name. Matching is
// substring-based on the provider side.
type Filters struct {
	CampaignNames []string `json:"campaign_names,omitempty"`
	AdSetNames    []string `json:"adset_names,omitempty"`
	AdNames       []string `json:"ad_names,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return len(f.CampaignNames) == 0 && len(f.AdSetNames) == 0 && len(f.AdNames) == 0
}

// ConfigHash computes the content-addressed cache scope for a filter
// configuration plus the requested base metric keys. Hashing the sorted
// keys alongside the filters keeps cache rows from one key set from
// being mistaken for coverage of another: two requests share a scope
// only when both their filters and their key sets match.
func ConfigHash(filters Filters, keys []metric.Key) string {
	canonical := struct {
		Campaigns []string `json:"campaigns"`
		AdSets    []string `json:"adsets"`
		Ads       []string `json:"ads"`
		Keys      []string `json:"keys"`
	}{
		Campaigns: sortedCopy(filters.CampaignNames),
		AdSets:    sortedCopy(filters.AdSetNames),
		Ads:       sortedCopy(filters.AdNames),
		Keys:      sortedKeys(keys),
	}

	// Marshal cannot fail for a struct of string slices.
	payload, _ := json.Marshal(canonical)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func sortedKeys(keys []metric.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
