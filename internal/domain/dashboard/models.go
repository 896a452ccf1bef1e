package dashboard

import (
	"encoding/json"
	"time"

	"consenthub/internal/domain/consent"
)

type Overview struct {
	GeneratedAt       time.Time       `json:"generatedAt"`
	Users             UserStats       `json:"users"`
	Consents          consent.Summary `json:"consents"`
	ConsentsByPurpose []PurposeStat   `json:"consentsByPurpose"`
	DSAR              DSARStats       `json:"dsar"`
	Notices           NoticeStats     `json:"notices"`
	Webhooks          WebhookStats    `json:"webhooks"`
	Cached            bool            `json:"cached"`
}

type UserStats struct {
	Total  int            `json:"total"`
	Active int            `json:"active"`
	ByRole map[string]int `json:"byRole"`
}

type PurposeStat struct {
	Purpose         string `json:"purpose"`
	Total           int    `json:"total"`
	Granted         int    `json:"granted"`
	ComplianceScore int    `json:"complianceScore"`
}

type DSARStats struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"byStatus"`
	ByType             map[string]int `json:"byType"`
	Overdue            int            `json:"overdue"`
	DueWithinWeek      int            `json:"dueWithinWeek"`
	AvgCompletionHours float64        `json:"avgCompletionHours"`
}

type NoticeStats struct {
	Active   int `json:"active"`
	Draft    int `json:"draft"`
	Archived int `json:"archived"`
}

type WebhookStats struct {
	Active           int `json:"active"`
	DeliveredLast24h int `json:"deliveredLast24h"`
	FailedLast24h    int `json:"failedLast24h"`
}

type JobRun struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	SubjectID   string          `json:"subjectId,omitempty"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type JobRunFilter struct {
	JobType     string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
}
