package consent

import "time"

type Status string

const (
	StatusGranted Status = "granted"
	StatusRevoked Status = "revoked"
	StatusPending Status = "pending"
	StatusDenied  Status = "denied"
)

const (
	TypeExplicit = "explicit"
	TypeImplicit = "implicit"
	TypeGuardian = "guardian_consent"
)

type Consent struct {
	ID              string         `json:"id"`
	Seq             int64          `json:"-"`
	PartyID         string         `json:"partyId"`
	Purpose         string         `json:"purpose"`
	Channel         string         `json:"channel"`
	ConsentType     string         `json:"consentType"`
	Status          Status         `json:"status"`
	GrantedAt       *time.Time     `json:"grantedAt,omitempty"`
	RevokedAt       *time.Time     `json:"revokedAt,omitempty"`
	ValidFrom       *time.Time     `json:"validFrom,omitempty"`
	ValidTo         *time.Time     `json:"validTo,omitempty"`
	Source          string         `json:"source"`
	PrivacyNoticeID string         `json:"privacyNoticeId,omitempty"`
	VersionAccepted string         `json:"versionAccepted,omitempty"`
	GuardianID      string         `json:"guardianId,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	RowVersion      int            `json:"rowVersion"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type HistoryEntry struct {
	ID             string    `json:"id"`
	ConsentID      string    `json:"consentId"`
	PreviousStatus Status    `json:"previousStatus,omitempty"`
	NewStatus      Status    `json:"newStatus"`
	ActorUserID    string    `json:"actorUserId,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	ChangedAt      time.Time `json:"changedAt"`
}

type NewConsent struct {
	PartyID         string
	Purpose         string
	Channel         string
	ConsentType     string
	Status          Status
	Source          string
	PrivacyNoticeID string
	VersionAccepted string
	ValidFrom       *time.Time
	ValidTo         *time.Time
	Metadata        map[string]any
}

type Filter struct {
	PartyID     string
	Purpose     string
	Status      Status
	ConsentType string
	GuardianID  string
}

type Guardian struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId,omitempty"`
	Name            string           `json:"name"`
	Email           string           `json:"email,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	Relationship    string           `json:"relationship"`
	MinorDependents []MinorDependent `json:"minorDependents"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type MinorDependent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Age          int    `json:"age,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// HasMinor reports whether minorID is one of g's dependents.
func (g Guardian) HasMinor(minorID string) bool {
	for _, m := range g.MinorDependents {
		if m.ID == minorID {
			return true
		}
	}
	return false
}

type MinorConsent struct {
	Purpose string
	Channel string
	Status  Status
}

type GuardianConsentRequest struct {
	GuardianID string
	MinorID    string
	Source     string
	Consents   []MinorConsent
}

type GuardianConsentResult struct {
	GuardianID string    `json:"guardianId"`
	MinorID    string    `json:"minorId"`
	Consents   []Consent `json:"consents"`
}

type Summary struct {
	Total           int `json:"total"`
	Granted         int `json:"granted"`
	Revoked         int `json:"revoked"`
	Pending         int `json:"pending"`
	Denied          int `json:"denied"`
	ComplianceScore int `json:"complianceScore"`
}
