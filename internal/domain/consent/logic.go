package consent

import (
	"math"
	"slices"
	"strings"
	"time"

	"consenthub/internal/domain/errs"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusGranted, StatusRevoked, StatusPending, StatusDenied:
		return s, nil
	}
	return "", errs.Invalid("status", "must be one of granted, revoked, pending, denied")
}

// LatestAction is the most recent of grantedAt, revokedAt and updatedAt.
func LatestAction(c Consent) time.Time {
	latest := c.UpdatedAt
	for _, ts := range []*time.Time{c.GrantedAt, c.RevokedAt} {
		if ts != nil && ts.After(latest) {
			latest = *ts
		}
	}
	return latest
}

// newer reports whether a should win over b: later latest action, and on a
// tie the later insert.
func newer(a, b Consent) bool {
	la, lb := LatestAction(a), LatestAction(b)
	if !la.Equal(lb) {
		return la.After(lb)
	}
	return a.Seq > b.Seq
}

// ResolveLatest picks the current record out of records for one party and
// purpose.
func ResolveLatest(records []Consent) (Consent, bool) {
	if len(records) == 0 {
		return Consent{}, false
	}
	best := records[0]
	for _, c := range records[1:] {
		if newer(c, best) {
			best = c
		}
	}
	return best, true
}

// SortByLatestAction orders records newest first.
func SortByLatestAction(records []Consent) {
	slices.SortStableFunc(records, func(a, b Consent) int {
		switch {
		case newer(a, b):
			return -1
		case newer(b, a):
			return 1
		}
		return 0
	})
}

// EffectiveByPurpose returns the current record per party and purpose,
// newest first.
func EffectiveByPurpose(records []Consent) []Consent {
	groups := map[string][]Consent{}
	var order []string
	for _, c := range records {
		key := c.PartyID + "\x00" + c.Purpose
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}
	out := make([]Consent, 0, len(order))
	for _, key := range order {
		current, _ := ResolveLatest(groups[key])
		out = append(out, current)
	}
	SortByLatestAction(out)
	return out
}

func ComplianceScore(granted, total int) int {
	return int(math.Round(float64(granted) / float64(max(total, 1)) * 100))
}

func Summarize(records []Consent) Summary {
	var s Summary
	for _, c := range records {
		s.Total++
		switch c.Status {
		case StatusGranted:
			s.Granted++
		case StatusRevoked:
			s.Revoked++
		case StatusPending:
			s.Pending++
		case StatusDenied:
			s.Denied++
		}
	}
	s.ComplianceScore = ComplianceScore(s.Granted, s.Total)
	return s
}

// applyStatus stamps the timestamps that belong to status.
func applyStatus(c Consent, status Status, now time.Time) Consent {
	ts := now.UTC()
	c.Status = status
	c.UpdatedAt = ts
	switch status {
	case StatusGranted:
		c.GrantedAt = &ts
	case StatusRevoked:
		c.RevokedAt = &ts
	}
	return c
}
