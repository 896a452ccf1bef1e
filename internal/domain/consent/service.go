package consent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"consenthub/internal/domain/audit"
	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/errs"
	"consenthub/internal/domain/webhook"
	"consenthub/internal/platform/metrics"
)

const (
	entityType    = "consent"
	defaultSource = "web"
	defaultChan   = "all"
)

type Service struct {
	store  StoreAPI
	events webhook.Publisher
	audit  audit.Recorder
	log    *zap.Logger
	now    func() time.Time
}

func NewService(store StoreAPI, events webhook.Publisher, recorder audit.Recorder, log *zap.Logger) *Service {
	return &Service{store: store, events: events, audit: recorder, log: log, now: time.Now}
}

func (s *Service) Create(ctx context.Context, actor auth.UserContext, in NewConsent) (Consent, error) {
	if !actor.IsStaff() {
		if in.PartyID == "" {
			in.PartyID = actor.UserID
		}
		if in.PartyID != actor.UserID {
			return Consent{}, ErrNotOwner
		}
	}

	verr := &errs.ValidationError{}
	if strings.TrimSpace(in.PartyID) == "" {
		verr.Add("partyId", "is required")
	}
	if strings.TrimSpace(in.Purpose) == "" {
		verr.Add("purpose", "is required")
	}
	if in.Status == "" {
		in.Status = StatusGranted
	} else if _, err := ParseStatus(string(in.Status)); err != nil {
		verr.Add("status", "must be one of granted, revoked, pending, denied")
	}
	if in.ValidFrom != nil && in.ValidTo != nil && in.ValidTo.Before(*in.ValidFrom) {
		verr.Add("validTo", "must not be before validFrom")
	}
	if id := strings.TrimSpace(in.PrivacyNoticeID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			verr.Add("privacyNoticeId", "must be a privacy notice id")
		}
	}
	if err := verr.Err(); err != nil {
		return Consent{}, err
	}

	record := s.newRecord(in)
	created, err := s.store.CreateBatch(ctx, []Consent{record}, actor.UserID)
	if err != nil {
		return Consent{}, err
	}
	c := created[0]
	s.afterCreate(ctx, actor.UserID, c)
	return c, nil
}

func (s *Service) newRecord(in NewConsent) Consent {
	now := s.now().UTC()
	c := Consent{
		PartyID:         strings.TrimSpace(in.PartyID),
		Purpose:         strings.TrimSpace(in.Purpose),
		Channel:         orDefault(in.Channel, defaultChan),
		ConsentType:     orDefault(in.ConsentType, TypeExplicit),
		Source:          orDefault(in.Source, defaultSource),
		PrivacyNoticeID: strings.TrimSpace(in.PrivacyNoticeID),
		VersionAccepted: strings.TrimSpace(in.VersionAccepted),
		ValidFrom:       in.ValidFrom,
		ValidTo:         in.ValidTo,
		Metadata:        in.Metadata,
		CreatedAt:       now,
	}
	return applyStatus(c, in.Status, now)
}

func (s *Service) afterCreate(ctx context.Context, actorID string, c Consent) {
	metrics.ConsentChangesTotal.WithLabelValues(string(c.Status), c.ConsentType).Inc()
	s.record(ctx, actorID, audit.ActionCreate, c.ID, nil, c)
	s.events.Publish(ctx, webhook.ConsentCreateEvent, c)
}

// UpdateStatus sets any status label on a record. Customers may only change
// their own records; guardians only records they created for a minor.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.UserContext, id string, status Status, reason string) (Consent, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Consent{}, err
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Consent{}, err
	}
	if err := s.authorizeChange(ctx, actor, current); err != nil {
		return Consent{}, err
	}

	next := applyStatus(current, status, s.now())
	updated, err := s.store.UpdateStatus(ctx, next, HistoryEntry{
		ConsentID:      current.ID,
		PreviousStatus: current.Status,
		NewStatus:      status,
		ActorUserID:    actor.UserID,
		Reason:         strings.TrimSpace(reason),
		ChangedAt:      next.UpdatedAt,
	})
	if err != nil {
		return Consent{}, err
	}

	metrics.ConsentChangesTotal.WithLabelValues(string(status), updated.ConsentType).Inc()
	s.record(ctx, actor.UserID, audit.ActionStatusChange, updated.ID, current, updated)
	s.events.Publish(ctx, webhook.ConsentStateChangeEvent, updated)
	return updated, nil
}

func (s *Service) Revoke(ctx context.Context, actor auth.UserContext, id, reason string) (Consent, error) {
	return s.UpdateStatus(ctx, actor, id, StatusRevoked, reason)
}

func (s *Service) authorizeChange(ctx context.Context, actor auth.UserContext, c Consent) error {
	if actor.IsStaff() || c.PartyID == actor.UserID {
		return nil
	}
	if actor.RoleName == auth.RoleGuardian && c.GuardianID != "" {
		g, err := s.store.GetGuardian(ctx, c.GuardianID)
		if err != nil {
			return err
		}
		if g.UserID == actor.UserID {
			return nil
		}
	}
	return ErrNotOwner
}

func (s *Service) Get(ctx context.Context, actor auth.UserContext, id string) (Consent, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Consent{}, err
	}
	if err := s.authorizeChange(ctx, actor, c); err != nil {
		return Consent{}, err
	}
	return c, nil
}

// List returns records newest first. Non-staff actors only see their own.
func (s *Service) List(ctx context.Context, actor auth.UserContext, filter Filter, limit, offset int) ([]Consent, int, error) {
	if !actor.IsStaff() {
		filter.PartyID = actor.UserID
	}
	items, total, err := s.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	SortByLatestAction(items)
	return items, total, nil
}

func (s *Service) History(ctx context.Context, actor auth.UserContext, id string) ([]HistoryEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

// Effective returns the current record per purpose for partyID.
func (s *Service) Effective(ctx context.Context, actor auth.UserContext, partyID string) ([]Consent, Summary, error) {
	if !actor.IsStaff() {
		partyID = actor.UserID
	}
	if strings.TrimSpace(partyID) == "" {
		return nil, Summary{}, errs.Invalid("partyId", "is required")
	}
	records, err := s.store.ListByParty(ctx, partyID)
	if err != nil {
		return nil, Summary{}, err
	}
	current := EffectiveByPurpose(records)
	return current, Summarize(current), nil
}

// CreateForMinor records consents given by a guardian on behalf of a minor.
func (s *Service) CreateForMinor(ctx context.Context, actor auth.UserContext, in GuardianConsentRequest) (GuardianConsentResult, error) {
	verr := &errs.ValidationError{}
	if strings.TrimSpace(in.GuardianID) == "" {
		verr.Add("guardianId", "is required")
	}
	if strings.TrimSpace(in.MinorID) == "" {
		verr.Add("minorId", "is required")
	}
	if len(in.Consents) == 0 {
		verr.Add("consents", "must contain at least one consent")
	}
	for _, mc := range in.Consents {
		if strings.TrimSpace(mc.Purpose) == "" {
			verr.Add("consents.purpose", "is required")
		}
		if mc.Status != "" {
			if _, err := ParseStatus(string(mc.Status)); err != nil {
				verr.Add("consents.status", "must be one of granted, revoked, pending, denied")
			}
		}
	}
	if err := verr.Err(); err != nil {
		return GuardianConsentResult{}, err
	}

	g, err := s.store.GetGuardian(ctx, in.GuardianID)
	if err != nil {
		return GuardianConsentResult{}, err
	}
	if !actor.IsAdmin() {
		if actor.RoleName == auth.RoleGuardian && g.UserID != actor.UserID {
			return GuardianConsentResult{}, ErrGuardianNotAuthorized
		}
		if !g.HasMinor(in.MinorID) {
			return GuardianConsentResult{}, ErrGuardianNotAuthorized
		}
	}

	records := make([]Consent, 0, len(in.Consents))
	for _, mc := range in.Consents {
		status := mc.Status
		if status == "" {
			status = StatusGranted
		}
		c := s.newRecord(NewConsent{
			PartyID:     in.MinorID,
			Purpose:     mc.Purpose,
			Channel:     mc.Channel,
			ConsentType: TypeGuardian,
			Status:      status,
			Source:      orDefault(in.Source, "guardian_portal"),
			Metadata:    map[string]any{"guardianName": g.Name, "relationship": g.Relationship},
		})
		c.GuardianID = g.ID
		records = append(records, c)
	}

	created, err := s.store.CreateBatch(ctx, records, actor.UserID)
	if err != nil {
		return GuardianConsentResult{}, err
	}
	for _, c := range created {
		s.afterCreate(ctx, actor.UserID, c)
	}
	return GuardianConsentResult{GuardianID: g.ID, MinorID: in.MinorID, Consents: created}, nil
}

// ListGuardians returns every guardian for staff and only the caller's own
// guardian profile otherwise.
func (s *Service) ListGuardians(ctx context.Context, actor auth.UserContext) ([]Guardian, error) {
	all, err := s.store.ListGuardians(ctx)
	if err != nil {
		return nil, err
	}
	if actor.IsStaff() {
		return all, nil
	}
	out := []Guardian{}
	for _, g := range all {
		if g.UserID == actor.UserID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, actorID, action, id string, before, after any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actorID, action, entityType, id, before, after); err != nil {
		s.log.Warn("audit record failed", zap.String("entityId", id), zap.String("action", action), zap.Error(err))
	}
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
