package webhook

import (
	"net/url"
	"strings"

	"consenthub/internal/domain/errs"
)

// ParseQuery turns a TMF669 hub query ("eventType=A,B", "eventType=A&eventType=B")
// or a plain comma-separated list into the canonical comma-separated filter.
// Empty and "*" mean every event. A non-empty query that names no event type
// is rejected rather than widened to every event.
func ParseQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" || query == "*" {
		return "", nil
	}

	var topics []string
	for _, part := range strings.FieldsFunc(query, func(r rune) bool { return r == '&' || r == ';' }) {
		part = strings.TrimSpace(part)
		if key, value, ok := strings.Cut(part, "="); ok {
			if !strings.EqualFold(strings.TrimSpace(key), "eventType") {
				continue
			}
			part = value
		}
		if unescaped, err := url.QueryUnescape(part); err == nil {
			part = unescaped
		}
		for _, topic := range strings.Split(part, ",") {
			if topic = strings.TrimSpace(topic); topic != "" {
				topics = append(topics, topic)
			}
		}
	}
	if len(topics) == 0 {
		return "", errs.Invalid("query", "must name at least one eventType")
	}
	return strings.Join(dedupe(topics), ","), nil
}

// Matches reports whether the subscription wants eventType.
func (s Subscription) Matches(eventType string) bool {
	if s.Status != StatusActive {
		return false
	}
	filter := strings.TrimSpace(s.Events)
	if filter == "" || filter == "*" {
		return true
	}
	for _, topic := range strings.Split(filter, ",") {
		topic = strings.TrimSpace(topic)
		if topic == "*" || strings.EqualFold(topic, eventType) {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
