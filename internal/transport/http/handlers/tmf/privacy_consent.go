package tmfhandler

import (
	"strings"
	"time"

	"consenthub/internal/domain/consent"
)

const privacyConsentPath = "/api/tmf632/privacyConsent/"

// PrivacyConsent is the TMF632 view of a consent record.
type PrivacyConsent struct {
	ID             string            `json:"id"`
	Href           string            `json:"href"`
	Type           string            `json:"@type"`
	Purpose        string            `json:"purpose"`
	Channel        string            `json:"channel,omitempty"`
	ConsentType    string            `json:"consentType,omitempty"`
	State          string            `json:"state"`
	Source         string            `json:"source,omitempty"`
	ValidFor       *TimePeriod       `json:"validFor,omitempty"`
	PrivacyNotice  *PrivacyNoticeRef `json:"privacyNotice,omitempty"`
	RelatedParty   []RelatedPartyRef `json:"relatedParty"`
	Characteristic map[string]any    `json:"characteristic,omitempty"`
	CreationDate   time.Time         `json:"creationDate"`
	LastUpdate     time.Time         `json:"lastUpdate"`
}

type TimePeriod struct {
	StartDateTime *time.Time `json:"startDateTime,omitempty"`
	EndDateTime   *time.Time `json:"endDateTime,omitempty"`
}

type PrivacyNoticeRef struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

type RelatedPartyRef struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	ReferredType string `json:"@referredType"`
}

// privacyConsentInput is the accepted POST body. The party comes from the
// first relatedParty with role customer (or the first one at all).
type privacyConsentInput struct {
	Purpose        string            `json:"purpose"`
	Channel        string            `json:"channel"`
	ConsentType    string            `json:"consentType"`
	State          string            `json:"state"`
	Status         string            `json:"status"`
	Source         string            `json:"source"`
	ValidFor       *TimePeriod       `json:"validFor"`
	PrivacyNotice  *PrivacyNoticeRef `json:"privacyNotice"`
	RelatedParty   []RelatedPartyRef `json:"relatedParty"`
	Characteristic map[string]any    `json:"characteristic"`
}

type privacyConsentPatch struct {
	State  string `json:"state"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func toPrivacyConsent(c consent.Consent, baseURL string) PrivacyConsent {
	out := PrivacyConsent{
		ID:             c.ID,
		Href:           baseURL + privacyConsentPath + c.ID,
		Type:           "PrivacyConsent",
		Purpose:        c.Purpose,
		Channel:        c.Channel,
		ConsentType:    c.ConsentType,
		State:          string(c.Status),
		Source:         c.Source,
		RelatedParty:   []RelatedPartyRef{{ID: c.PartyID, Role: "customer", ReferredType: "Individual"}},
		Characteristic: c.Metadata,
		CreationDate:   c.CreatedAt,
		LastUpdate:     c.UpdatedAt,
	}
	if c.ValidFrom != nil || c.ValidTo != nil {
		out.ValidFor = &TimePeriod{StartDateTime: c.ValidFrom, EndDateTime: c.ValidTo}
	}
	if c.PrivacyNoticeID != "" {
		out.PrivacyNotice = &PrivacyNoticeRef{ID: c.PrivacyNoticeID, Version: c.VersionAccepted}
	}
	if c.GuardianID != "" {
		out.RelatedParty = append(out.RelatedParty, RelatedPartyRef{ID: c.GuardianID, Role: "guardian", ReferredType: "Individual"})
	}
	return out
}

func (in privacyConsentInput) toNewConsent() consent.NewConsent {
	out := consent.NewConsent{
		PartyID:     partyFrom(in.RelatedParty),
		Purpose:     in.Purpose,
		Channel:     in.Channel,
		ConsentType: in.ConsentType,
		Status:      consent.Status(strings.ToLower(strings.TrimSpace(firstNonEmpty(in.State, in.Status)))),
		Source:      firstNonEmpty(in.Source, "tmf632"),
		Metadata:    in.Characteristic,
	}
	if in.ValidFor != nil {
		out.ValidFrom = in.ValidFor.StartDateTime
		out.ValidTo = in.ValidFor.EndDateTime
	}
	if in.PrivacyNotice != nil {
		out.PrivacyNoticeID = in.PrivacyNotice.ID
		out.VersionAccepted = in.PrivacyNotice.Version
	}
	return out
}

func partyFrom(refs []RelatedPartyRef) string {
	for _, ref := range refs {
		if strings.EqualFold(ref.Role, "customer") {
			return ref.ID
		}
	}
	if len(refs) > 0 {
		return refs[0].ID
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
