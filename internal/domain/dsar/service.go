package dsar

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"consenthub/internal/domain/audit"
	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/errs"
	"consenthub/internal/domain/webhook"
	"consenthub/internal/platform/crypto"
	"consenthub/internal/platform/jobs"
	"consenthub/internal/platform/metrics"
	"consenthub/internal/platform/phone"
)

const entityType = "dsar_request"

// SystemActor is recorded as the actor of automated transitions.
const SystemActor = "system"

type Dispatcher interface {
	Enqueue(jobType, subjectID string, run jobs.Runner) bool
}

type Options struct {
	SLADays        int
	ExportTTL      time.Duration
	SimulatedDelay bool
	PublicBaseURL  string
	PhoneRegion    string
}

type Service struct {
	store      StoreAPI
	subjects   SubjectData
	events     webhook.Publisher
	audit      audit.Recorder
	dispatcher Dispatcher
	field      *crypto.Field
	opts       Options
	log        *zap.Logger
	now        func() time.Time
	delays     map[RequestType]time.Duration
}

func NewService(store StoreAPI, subjects SubjectData, events webhook.Publisher, recorder audit.Recorder, dispatcher Dispatcher, field *crypto.Field, opts Options, log *zap.Logger) *Service {
	if opts.SLADays <= 0 {
		opts.SLADays = 30
	}
	if opts.ExportTTL <= 0 {
		opts.ExportTTL = 7 * day
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = "US"
	}
	return &Service{
		store:      store,
		subjects:   subjects,
		events:     events,
		audit:      recorder,
		dispatcher: dispatcher,
		field:      field,
		opts:       opts,
		log:        log,
		now:        time.Now,
		delays: map[RequestType]time.Duration{
			TypeAccess:        2 * time.Second,
			TypePortability:   2500 * time.Millisecond,
			TypeErasure:       3500 * time.Millisecond,
			TypeRectification: 1500 * time.Millisecond,
		},
	}
}

func (s *Service) Create(ctx context.Context, actor auth.UserContext, in NewRequest) (View, error) {
	in.RequesterName = strings.TrimSpace(in.RequesterName)
	in.RequesterEmail = strings.TrimSpace(in.RequesterEmail)

	if !actor.IsStaff() {
		if in.RequesterEmail == "" {
			in.RequesterEmail = actor.Email
		}
		if !strings.EqualFold(in.RequesterEmail, actor.Email) {
			return View{}, ErrNotOwner
		}
		in.PartyID = actor.UserID
	}

	verr := &errs.ValidationError{}
	if in.RequesterName == "" {
		verr.Add("requesterName", "is required")
	}
	if in.RequesterEmail == "" {
		verr.Add("requesterEmail", "is required")
	} else if _, err := mail.ParseAddress(in.RequesterEmail); err != nil {
		verr.Add("requesterEmail", "must be a valid email address")
	}
	if !in.RequestType.Valid() {
		verr.Add("requestType", "must be one of data_access, data_erasure, data_portability, data_rectification")
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	} else if _, err := ParsePriority(string(in.Priority)); err != nil {
		verr.Add("priority", "must be one of low, medium, high")
	}
	normalizedPhone := ""
	if strings.TrimSpace(in.RequesterPhone) != "" {
		p, err := phone.Normalize(in.RequesterPhone, s.opts.PhoneRegion)
		if err != nil {
			verr.Add("requesterPhone", "must be a valid phone number")
		}
		normalizedPhone = p
	}
	if err := verr.Err(); err != nil {
		return View{}, err
	}

	sealed, err := s.sealPhone(normalizedPhone)
	if err != nil {
		return View{}, err
	}

	if in.PartyID == "" && s.subjects != nil {
		partyID, err := s.subjects.ResolveParty(ctx, in.RequesterEmail)
		if err != nil {
			s.log.Warn("dsar party lookup failed", zap.String("email", in.RequesterEmail), zap.Error(err))
		}
		in.PartyID = partyID
	}

	now := s.now().UTC()
	created, err := s.store.Create(ctx, Request{
		RequestID:      NewRequestID(now),
		RequesterName:  in.RequesterName,
		RequesterEmail: in.RequesterEmail,
		PhoneSealed:    sealed,
		PartyID:        in.PartyID,
		RequestType:    in.RequestType,
		Priority:       in.Priority,
		Status:         StatusPending,
		Description:    strings.TrimSpace(in.Description),
		Details:        in.Details,
		SubmittedAt:    now,
		DueDate:        DueDate(now, s.opts.SLADays),
	})
	if err != nil {
		return View{}, err
	}
	created.RequesterPhone = normalizedPhone

	s.record(ctx, actor.UserID, audit.ActionCreate, created.ID, nil, created)
	s.events.Publish(ctx, webhook.DSARCreateEvent, created)
	return NewView(created, s.now()), nil
}

// NewRequestID returns a DSAR-YYYYMMDD-XXXXXX identifier.
func NewRequestID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("DSAR-%s-%s", now.UTC().Format("20060102"), suffix)
}

func (s *Service) Get(ctx context.Context, id string) (View, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return NewView(r, s.now()), nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]View, int, error) {
	now := s.now()
	items, total, err := s.store.List(ctx, filter, now, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]View, 0, len(items))
	for _, r := range items {
		out = append(out, NewView(s.hydrate(r), now))
	}
	return out, total, nil
}

func (s *Service) Approve(ctx context.Context, actor auth.UserContext, id string) (View, error) {
	return s.UpdateStatus(ctx, actor, id, StatusInProgress, "")
}

func (s *Service) Reject(ctx context.Context, actor auth.UserContext, id, reason string) (View, error) {
	if strings.TrimSpace(reason) == "" {
		return View{}, errs.Invalid("reason", "is required")
	}
	return s.UpdateStatus(ctx, actor, id, StatusRejected, reason)
}

// Complete performs the type-specific work for an in_progress request on
// behalf of a CSR and marks it completed.
func (s *Service) Complete(ctx context.Context, actor auth.UserContext, id, notes string) (View, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return View{}, ErrInvalidTransition
	}
	result, err := s.execute(ctx, r, false, strings.TrimSpace(notes))
	if err != nil {
		return View{}, err
	}
	updated, err := s.transition(ctx, actor.UserID, r, StatusCompleted, TransitionInput{Result: result, Actor: actor.UserID})
	if err != nil {
		return View{}, err
	}
	return NewView(updated, s.now()), nil
}

// UpdateStatus is the generic CSR action. Completion is routed through
// Complete so that a result is always attached.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.UserContext, id string, to Status, reason string) (View, error) {
	if to == StatusCompleted {
		return s.Complete(ctx, actor, id, reason)
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	updated, err := s.transition(ctx, actor.UserID, r, to, TransitionInput{Reason: reason, Actor: actor.UserID})
	if err != nil {
		return View{}, err
	}
	return NewView(updated, s.now()), nil
}

// Purge removes a terminal request.
func (s *Service) Purge(ctx context.Context, actor auth.UserContext, id string) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !r.Status.Terminal() {
		return fmt.Errorf("only completed or rejected requests can be purged: %w", errs.ErrInvalidState)
	}
	if err := s.store.Delete(ctx, r.ID); err != nil {
		return err
	}
	s.record(ctx, actor.UserID, audit.ActionDelete, r.ID, r, nil)
	return nil
}

// transition applies the lifecycle table, persists with the row version check
// and emits the audit trail, metrics and events for the change.
func (s *Service) transition(ctx context.Context, actorID string, r Request, to Status, in TransitionInput) (Request, error) {
	next, err := Transition(r, to, in, s.now())
	if err != nil {
		return Request{}, err
	}
	updated, err := s.store.UpdateLifecycle(ctx, next)
	if err != nil {
		return Request{}, err
	}
	updated = s.hydrate(updated)

	metrics.DSARTransitionsTotal.WithLabelValues(string(r.Status), string(to)).Inc()
	s.record(ctx, actorID, audit.ActionStatusChange, updated.ID, r, updated)

	s.events.Publish(ctx, webhook.DSARStateChangeEvent, updated)
	switch to {
	case StatusCompleted:
		s.events.Publish(ctx, webhook.DSARCompletedEvent, updated)
	case StatusRejected:
		s.events.Publish(ctx, webhook.DSARRejectedEvent, updated)
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, id string) (Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	return s.hydrate(r), nil
}

func (s *Service) hydrate(r Request) Request {
	if len(r.PhoneSealed) == 0 {
		return r
	}
	plain, err := s.field.OpenString(r.PhoneSealed)
	if err != nil {
		s.log.Warn("dsar phone decrypt failed", zap.String("id", r.ID), zap.Error(err))
		return r
	}
	r.RequesterPhone = plain
	return r
}

func (s *Service) sealPhone(p string) ([]byte, error) {
	if p == "" {
		return nil, nil
	}
	return s.field.SealString(p)
}

func (s *Service) record(ctx context.Context, actorID, action, id string, before, after any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actorID, action, entityType, id, before, after); err != nil {
		s.log.Warn("audit record failed", zap.String("entityId", id), zap.String("action", action), zap.Error(err))
	}
}
