package dsar

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

type RequestType string

const (
	TypeAccess        RequestType = "data_access"
	TypeErasure       RequestType = "data_erasure"
	TypePortability   RequestType = "data_portability"
	TypeRectification RequestType = "data_rectification"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Request struct {
	ID                  string            `json:"id"`
	RequestID           string            `json:"requestId"`
	RequesterName       string            `json:"requesterName"`
	RequesterEmail      string            `json:"requesterEmail"`
	RequesterPhone      string            `json:"requesterPhone,omitempty"`
	PartyID             string            `json:"partyId,omitempty"`
	RequestType         RequestType       `json:"requestType"`
	Priority            Priority          `json:"priority"`
	Status              Status            `json:"status"`
	Description         string            `json:"description,omitempty"`
	Details             map[string]any    `json:"details,omitempty"`
	AssignedTo          string            `json:"assignedTo,omitempty"`
	SubmittedAt         time.Time         `json:"submittedAt"`
	ProcessingStartedAt *time.Time        `json:"processingStartedAt,omitempty"`
	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
	FailedAt            *time.Time        `json:"failedAt,omitempty"`
	DueDate             time.Time         `json:"dueDate"`
	ProcessingResult    *ProcessingResult `json:"processingResult,omitempty"`
	FailureReason       string            `json:"failureReason,omitempty"`
	RowVersion          int               `json:"rowVersion"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`

	// PhoneSealed is the at-rest form of RequesterPhone.
	PhoneSealed []byte `json:"-"`
}

// ProcessingResult is attached on completion. Which fields are set depends on
// the request type.
type ProcessingResult struct {
	ProcessedAt time.Time `json:"processedAt"`
	Automated   bool      `json:"automated"`
	Notes       string    `json:"notes,omitempty"`

	DataExported bool       `json:"dataExported,omitempty"`
	ExportSize   int64      `json:"exportSize,omitempty"`
	ExportFormat string     `json:"exportFormat,omitempty"`
	DownloadLink string     `json:"downloadLink,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`

	DataDeleted         bool     `json:"dataDeleted,omitempty"`
	DeletionScope       []string `json:"deletionScope,omitempty"`
	RecordsDeleted      int64    `json:"recordsDeleted,omitempty"`
	RetentionCompliance *bool    `json:"retentionCompliance,omitempty"`
	DeletionCertificate string   `json:"deletionCertificate,omitempty"`

	DataRectified        bool     `json:"dataRectified,omitempty"`
	FieldsUpdated        []string `json:"fieldsUpdated,omitempty"`
	VerificationRequired *bool    `json:"verificationRequired,omitempty"`
}

type NewRequest struct {
	RequesterName  string
	RequesterEmail string
	RequesterPhone string
	PartyID        string
	RequestType    RequestType
	Priority       Priority
	Description    string
	Details        map[string]any
}

type Filter struct {
	Status      Status
	RequestType RequestType
	Priority    Priority
	Email       string
	OverdueOnly bool
}

// View is a request plus its derived, never persisted, risk fields.
type View struct {
	Request
	Risk
}
