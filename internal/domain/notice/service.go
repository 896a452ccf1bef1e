package notice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"consenthub/internal/domain/audit"
	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/errs"
	"consenthub/internal/domain/webhook"
)

const entityType = "privacy_notice"

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

func (s *Service) Create(ctx context.Context, actor auth.UserContext, in NewNotice) (Notice, error) {
	verr := &errs.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		verr.Add("content", "is required")
	}
	version := DefaultVersion
	if strings.TrimSpace(in.Version) != "" {
		ma, mi, err := ParseVersion(in.Version)
		if err != nil {
			verr.Add("version", "must look like 2 or 2.3")
		}
		version = fmt.Sprintf("%d.%d", ma, mi)
	}
	if err := verr.Err(); err != nil {
		return Notice{}, err
	}

	id := uuid.NewString()
	created, err := s.store.Create(ctx, Notice{
		ID:            id,
		Title:         strings.TrimSpace(in.Title),
		Content:       in.Content,
		Version:       version,
		Status:        StatusDraft,
		LineageID:     id,
		Language:      orDefault(in.Language, "en"),
		EffectiveDate: in.EffectiveDate,
		CreatedBy:     actor.UserID,
	})
	if err != nil {
		return Notice{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionCreate, created.ID, nil, created)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (Notice, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Notice, error) {
	return s.store.List(ctx, filter)
}

// Versions lists every notice in the lineage of id, newest first.
func (s *Service) Versions(ctx context.Context, id string) ([]Notice, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, Filter{LineageID: n.LineageID})
}

func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, patch Patch) (Notice, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Notice{}, err
	}
	if current.Status != StatusDraft {
		return Notice{}, ErrNotDraft
	}

	next := current
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		next.Content = *patch.Content
	}
	if patch.Language != nil {
		next.Language = orDefault(*patch.Language, "en")
	}
	if patch.EffectiveDate != nil {
		next.EffectiveDate = patch.EffectiveDate
	}
	verr := &errs.ValidationError{}
	if next.Title == "" {
		verr.Add("title", "must not be empty")
	}
	if strings.TrimSpace(next.Content) == "" {
		verr.Add("content", "must not be empty")
	}
	if err := verr.Err(); err != nil {
		return Notice{}, err
	}

	updated, err := s.store.Update(ctx, next)
	if err != nil {
		return Notice{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionUpdate, updated.ID, current, updated)
	return updated, nil
}

// Activate publishes a draft. Any other active notice of the same lineage is
// archived in the same transaction.
func (s *Service) Activate(ctx context.Context, actor auth.UserContext, id string) (Notice, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Notice{}, err
	}
	if !canTransition(current.Status, StatusActive) {
		return Notice{}, ErrInvalidTransition
	}
	next := current
	next.Status = StatusActive
	if next.EffectiveDate == nil {
		ts := s.now().UTC()
		next.EffectiveDate = &ts
	}

	activated, archived, err := s.store.Activate(ctx, next)
	if err != nil {
		return Notice{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionStatusChange, activated.ID, current, activated)
	for _, old := range archived {
		s.record(ctx, actor.UserID, audit.ActionStatusChange, old.ID, map[string]any{"status": StatusActive}, old)
	}
	return activated, nil
}

func (s *Service) Archive(ctx context.Context, actor auth.UserContext, id string) (Notice, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Notice{}, err
	}
	if !canTransition(current.Status, StatusArchived) {
		return Notice{}, ErrInvalidTransition
	}
	next := current
	next.Status = StatusArchived
	archived, err := s.store.Update(ctx, next)
	if err != nil {
		return Notice{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionStatusChange, archived.ID, current, archived)
	return archived, nil
}

// NewVersion drafts the next version of the notice id. Title and content are
// copied from the source unless given.
func (s *Service) NewVersion(ctx context.Context, actor auth.UserContext, id string, in VersionInput) (Notice, error) {
	source, err := s.store.Get(ctx, id)
	if err != nil {
		return Notice{}, err
	}
	version, err := NextVersion(source.Version, in.Major)
	if err != nil {
		return Notice{}, err
	}

	created, err := s.store.Create(ctx, Notice{
		ID:        uuid.NewString(),
		Title:     orDefault(in.Title, source.Title),
		Content:   orDefault(in.Content, source.Content),
		Version:   version,
		Status:    StatusDraft,
		ParentID:  source.ID,
		LineageID: source.LineageID,
		Changes:   strings.TrimSpace(in.Changes),
		Language:  source.Language,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		return Notice{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionCreate, created.ID, nil, created)
	s.events.Publish(ctx, webhook.PrivacyNoticeVersionCreateEvent, created)
	return created, nil
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
	if strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
