package dashboard

import (
	"cmp"
	"slices"

	"consenthub/internal/domain/consent"
)

// PurposeBreakdown groups effective consents by purpose, busiest first.
func PurposeBreakdown(effective []consent.Consent) []PurposeStat {
	byPurpose := map[string]*PurposeStat{}
	for _, c := range effective {
		stat, ok := byPurpose[c.Purpose]
		if !ok {
			stat = &PurposeStat{Purpose: c.Purpose}
			byPurpose[c.Purpose] = stat
		}
		stat.Total++
		if c.Status == consent.StatusGranted {
			stat.Granted++
		}
	}
	out := make([]PurposeStat, 0, len(byPurpose))
	for _, stat := range byPurpose {
		stat.ComplianceScore = consent.ComplianceScore(stat.Granted, stat.Total)
		out = append(out, *stat)
	}
	slices.SortFunc(out, func(a, b PurposeStat) int {
		return cmp.Or(cmp.Compare(b.Total, a.Total), cmp.Compare(a.Purpose, b.Purpose))
	})
	return out
}
