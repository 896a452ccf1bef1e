package notice

import "time"

type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

type Notice struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Version       string     `json:"version"`
	Status        Status     `json:"status"`
	ParentID      string     `json:"parentId,omitempty"`
	LineageID     string     `json:"lineageId"`
	Changes       string     `json:"changes,omitempty"`
	Language      string     `json:"language"`
	EffectiveDate *time.Time `json:"effectiveDate,omitempty"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	RowVersion    int        `json:"rowVersion"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type NewNotice struct {
	Title         string
	Content       string
	Version       string
	Language      string
	EffectiveDate *time.Time
}

// Patch holds optional edits to a draft; nil fields are left alone.
type Patch struct {
	Title         *string
	Content       *string
	Language      *string
	EffectiveDate *time.Time
}

type VersionInput struct {
	Major   bool
	Title   string
	Content string
	Changes string
}

type Filter struct {
	Status    Status
	Language  string
	LineageID string
}
