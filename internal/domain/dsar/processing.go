package dsar

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"consenthub/internal/domain/audit"
	"consenthub/internal/domain/auth"
	"consenthub/internal/platform/jobs"
	"consenthub/internal/platform/metrics"
	"consenthub/internal/platform/pdf"
	"consenthub/internal/platform/phone"
	"consenthub/internal/platform/tracing"
)

// ExportDocument is what a data subject downloads for an access or
// portability request.
type ExportDocument struct {
	RequestID   string            `json:"requestId"`
	RequestType RequestType       `json:"requestType"`
	Format      string            `json:"format"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Subject     map[string]string `json:"subject"`
	Data        map[string]any    `json:"data"`
	CSV         map[string]string `json:"csv,omitempty"`
}

// StartAutoProcessing moves a pending request to in_progress and queues the
// processing job. The caller never waits for the work itself.
func (s *Service) StartAutoProcessing(ctx context.Context, actor auth.UserContext, id string) (View, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if r.Status != StatusPending {
		return View{}, ErrNotPending
	}

	updated, err := s.transition(ctx, actor.UserID, r, StatusInProgress, TransitionInput{Actor: actor.UserID})
	if err != nil {
		return View{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionAutoProcess, updated.ID, nil, map[string]any{"requestType": updated.RequestType})

	if s.dispatcher == nil {
		return NewView(updated, s.now()), nil
	}
	queued := s.dispatcher.Enqueue(jobs.JobDSARAutoProcess, updated.ID, func(ctx context.Context) (any, error) {
		done, err := s.Process(ctx, updated.ID)
		return map[string]any{"requestId": done.RequestID, "status": done.Status}, err
	})
	if !queued {
		s.log.Warn("dsar auto-process job dropped, request left in_progress for manual completion",
			zap.String("id", updated.ID), zap.String("requestId", updated.RequestID))
	}
	return NewView(updated, s.now()), nil
}

// Process is the body of the auto-process job. Once started it runs to a
// terminal state even if ctx is cancelled during the simulated delay.
func (s *Service) Process(ctx context.Context, id string) (View, error) {
	ctx, span := tracing.Tracer("dsar").Start(ctx, "dsar.process")
	defer span.End()

	r, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	span.SetAttributes(attribute.String("dsar.request_id", r.RequestID), attribute.String("dsar.type", string(r.RequestType)))
	if r.Status != StatusInProgress {
		return NewView(r, s.now()), ErrInvalidTransition
	}

	started := time.Now()
	s.wait(ctx, r.RequestType)
	work := context.WithoutCancel(ctx)

	result, execErr := s.execute(work, r, true, "")
	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "dsar processing failed")
		metrics.DSARProcessingDuration.WithLabelValues(string(r.RequestType), "rejected").Observe(time.Since(started).Seconds())
		s.log.Warn("dsar processing failed", zap.String("requestId", r.RequestID), zap.Error(execErr))

		rejected, err := s.transition(work, SystemActor, r, StatusRejected, TransitionInput{Reason: execErr.Error()})
		if err != nil {
			return View{}, err
		}
		return NewView(rejected, s.now()), nil
	}

	completed, err := s.transition(work, SystemActor, r, StatusCompleted, TransitionInput{Result: result})
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}
	metrics.DSARProcessingDuration.WithLabelValues(string(r.RequestType), "completed").Observe(time.Since(started).Seconds())
	s.log.Info("dsar processed", zap.String("requestId", r.RequestID), zap.String("requestType", string(r.RequestType)))
	return NewView(completed, s.now()), nil
}

func (s *Service) wait(ctx context.Context, t RequestType) {
	if !s.opts.SimulatedDelay {
		return
	}
	timer := time.NewTimer(s.delays[t])
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// execute performs the type-specific work and shapes its result.
func (s *Service) execute(ctx context.Context, r Request, automated bool, notes string) (*ProcessingResult, error) {
	in := ResultInput{Automated: automated, Notes: notes, ExportTTL: s.opts.ExportTTL}

	switch r.RequestType {
	case TypeAccess, TypePortability:
		doc, err := s.buildExport(ctx, r)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		in.ExportSize = int64(len(encoded))
		in.DownloadLink = fmt.Sprintf("%s/api/v1/dsar/%s/export", strings.TrimRight(s.opts.PublicBaseURL, "/"), r.ID)
	case TypeErasure:
		erasure, err := s.subjects.EraseSubject(ctx, r.PartyID)
		if err != nil {
			return nil, fmt.Errorf("erase subject data: %w", err)
		}
		in.Erasure = erasure
		if len(erasure.Scope) == 0 {
			in.Notes = joinNotes(in.Notes, NoteNothingErased)
		}
	case TypeRectification:
		corrections := Corrections(r.Details)
		if raw, ok := corrections["phone"]; ok && raw != "" {
			normalized, err := phone.Normalize(raw, s.opts.PhoneRegion)
			if err != nil {
				return nil, fmt.Errorf("rectify phone: %w", err)
			}
			corrections["phone"] = normalized
		}
		if len(corrections) > 0 {
			fields, err := s.subjects.RectifySubject(ctx, r.PartyID, corrections)
			if err != nil {
				return nil, fmt.Errorf("rectify subject data: %w", err)
			}
			in.FieldsUpdated = fields
		}
	default:
		return nil, fmt.Errorf("unsupported request type %q", r.RequestType)
	}
	return BuildResult(r, in, s.now()), nil
}

// Export rebuilds the export for a completed access or portability request.
func (s *Service) Export(ctx context.Context, actor auth.UserContext, id string) (ExportDocument, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return ExportDocument{}, err
	}
	if err := authorizeSubject(actor, r); err != nil {
		return ExportDocument{}, err
	}
	if r.Status != StatusCompleted || !r.RequestType.Exportable() || r.ProcessingResult == nil {
		return ExportDocument{}, ErrNotExportable
	}
	if exp := r.ProcessingResult.ExpiresAt; exp != nil && s.now().After(*exp) {
		return ExportDocument{}, ErrExportExpired
	}
	return s.buildExport(ctx, r)
}

func (s *Service) buildExport(ctx context.Context, r Request) (ExportDocument, error) {
	data, err := s.subjects.ExportSubject(ctx, r.PartyID, r.RequesterEmail)
	if err != nil {
		return ExportDocument{}, fmt.Errorf("collect subject data: %w", err)
	}
	doc := ExportDocument{
		RequestID:   r.RequestID,
		RequestType: r.RequestType,
		Format:      ExportFormat(r.RequestType),
		GeneratedAt: s.now().UTC(),
		Subject: map[string]string{
			"name":  r.RequesterName,
			"email": r.RequesterEmail,
			"phone": r.RequesterPhone,
		},
		Data: data,
	}
	if doc.Format == FormatJSONCSV {
		doc.CSV = map[string]string{}
		for _, name := range slices.Sorted(maps.Keys(data)) {
			rows, ok := data[name].([]map[string]any)
			if !ok || len(rows) == 0 {
				continue
			}
			encoded, err := rowsToCSV(rows)
			if err != nil {
				return ExportDocument{}, err
			}
			doc.CSV[name] = encoded
		}
	}
	return doc, nil
}

func rowsToCSV(rows []map[string]any) (string, error) {
	columns := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			columns[k] = struct{}{}
		}
	}
	header := slices.Sorted(maps.Keys(columns))

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, col := range header {
			if v, ok := row[col]; ok && v != nil {
				record[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Certificate writes the deletion certificate PDF of a completed erasure.
func (s *Service) Certificate(ctx context.Context, actor auth.UserContext, id string, w io.Writer) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeSubject(actor, r); err != nil {
		return err
	}
	if r.Status != StatusCompleted || r.RequestType != TypeErasure || r.ProcessingResult == nil || r.ProcessingResult.DeletionCertificate == "" {
		return ErrNoCertificate
	}
	completedAt := r.ProcessingResult.ProcessedAt
	if r.CompletedAt != nil {
		completedAt = *r.CompletedAt
	}
	return pdf.WriteDeletionCertificate(w, pdf.DeletionCertificate{
		CertificateID:  r.ProcessingResult.DeletionCertificate,
		RequestID:      r.RequestID,
		RequesterName:  r.RequesterName,
		RequesterEmail: r.RequesterEmail,
		CompletedAt:    completedAt,
		Scope:          r.ProcessingResult.DeletionScope,
		RetentionNote:  "Consent records are retained as evidence of lawful processing.",
	})
}

func authorizeSubject(actor auth.UserContext, r Request) error {
	if actor.IsStaff() {
		return nil
	}
	if (r.PartyID != "" && r.PartyID == actor.UserID) || strings.EqualFold(r.RequesterEmail, actor.Email) {
		return nil
	}
	return ErrNotOwner
}

// SweepOverdue reports open requests past their due date. It never changes
// request state.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	count, err := s.store.CountOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.DSAROverdueRequests.Set(float64(count))
	if count > 0 {
		s.log.Warn("dsar requests past due date", zap.Int("count", count))
	}
	return count, nil
}
