package dsar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

const (
	FormatJSON    = "json"
	FormatJSONCSV = "json+csv"
)

// NoteNothingErased is recorded when an erasure found no data to remove.
const NoteNothingErased = "no linked account found; nothing was erased"

// ResultInput is the outcome of the type-specific work, fed to BuildResult.
type ResultInput struct {
	Automated     bool
	Notes         string
	ExportSize    int64
	DownloadLink  string
	ExportTTL     time.Duration
	Erasure       Erasure
	FieldsUpdated []string
}

// BuildResult shapes the processing result for r's request type.
func BuildResult(r Request, in ResultInput, now time.Time) *ProcessingResult {
	ts := now.UTC()
	out := &ProcessingResult{ProcessedAt: ts, Automated: in.Automated, Notes: in.Notes}

	switch r.RequestType {
	case TypeAccess, TypePortability:
		expires := ts.Add(in.ExportTTL)
		out.DataExported = true
		out.ExportSize = in.ExportSize
		out.ExportFormat = ExportFormat(r.RequestType)
		out.DownloadLink = in.DownloadLink
		out.ExpiresAt = &expires
	case TypeErasure:
		// A certificate is only issued when something was actually erased.
		retained := true
		scope := slices.Clone(in.Erasure.Scope)
		if scope == nil {
			scope = []string{}
		}
		out.DeletionScope = scope
		out.RecordsDeleted = in.Erasure.RecordsDeleted
		out.RetentionCompliance = &retained
		if len(scope) > 0 {
			out.DataDeleted = true
			out.DeletionCertificate = CertificateID(r, ts)
		}
	case TypeRectification:
		fields := slices.Clone(in.FieldsUpdated)
		if fields == nil {
			fields = []string{}
		}
		verify := len(fields) == 0 || slices.Contains(fields, "email") || slices.Contains(fields, "phone")
		out.DataRectified = true
		out.FieldsUpdated = fields
		out.VerificationRequired = &verify
	}
	return out
}

func ExportFormat(t RequestType) string {
	if t == TypePortability {
		return FormatJSONCSV
	}
	return FormatJSON
}

// CertificateID is stable for a given request and completion time.
func CertificateID(r Request, completedAt time.Time) string {
	sum := sha256.Sum256([]byte(r.RequestID + "|" + strings.ToLower(r.RequesterEmail) + "|" + completedAt.UTC().Format(time.RFC3339Nano)))
	return fmt.Sprintf("CERT-%s-%s", r.RequestID, strings.ToUpper(hex.EncodeToString(sum[:4])))
}

// Corrections reads the requested field corrections from a rectification
// request's details ({"corrections": {"name": "..."}}).
func Corrections(details map[string]any) map[string]string {
	raw, ok := details["corrections"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(s)
		}
	}
	return out
}

func joinNotes(notes, extra string) string {
	if notes == "" {
		return extra
	}
	return notes + "; " + extra
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
