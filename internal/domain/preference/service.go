package preference

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"consenthub/internal/domain/audit"
	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/errs"
)

var itemKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{1,63}$`)

type Service struct {
	store StoreAPI
	audit audit.Recorder
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store StoreAPI, recorder audit.Recorder, log *zap.Logger) *Service {
	return &Service{store: store, audit: recorder, log: log, now: time.Now}
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// GetCategory returns the category with its items.
func (s *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	items, err := s.store.ListItems(ctx, c.ID)
	if err != nil {
		return Category{}, err
	}
	c.Items = items
	return c, nil
}

func (s *Service) CreateCategory(ctx context.Context, actor auth.UserContext, in CategoryInput) (Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Category{}, errs.Invalid("name", "is required")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	created, err := s.store.CreateCategory(ctx, Category{Name: name, Description: strings.TrimSpace(in.Description), Active: active})
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionCreate, "preference_category", created.ID, nil, created)
	return created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor auth.UserContext, id string, in CategoryInput) (Category, error) {
	current, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	next := current
	if name := strings.TrimSpace(in.Name); name != "" {
		next.Name = name
	}
	if in.Description != "" {
		next.Description = strings.TrimSpace(in.Description)
	}
	if in.Active != nil {
		next.Active = *in.Active
	}
	updated, err := s.store.UpdateCategory(ctx, next)
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionUpdate, "preference_category", updated.ID, current, updated)
	return updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, actor auth.UserContext, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor.UserID, audit.ActionDelete, "preference_category", id, nil, nil)
	return nil
}

func (s *Service) ListItems(ctx context.Context, categoryID string) ([]Item, error) {
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.store.ListItems(ctx, categoryID)
}

func (s *Service) CreateItem(ctx context.Context, actor auth.UserContext, categoryID string, in ItemInput) (Item, error) {
	verr := &errs.ValidationError{}
	key := strings.ToLower(strings.TrimSpace(in.Key))
	if !itemKeyPattern.MatchString(key) {
		verr.Add("key", "must be 2-64 lowercase letters, digits, '_', '.' or '-'")
	}
	if strings.TrimSpace(in.Label) == "" {
		verr.Add("label", "is required")
	}
	if err := verr.Err(); err != nil {
		return Item{}, err
	}
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return Item{}, err
	}

	created, err := s.store.CreateItem(ctx, Item{
		CategoryID:   categoryID,
		Key:          key,
		Label:        strings.TrimSpace(in.Label),
		Description:  strings.TrimSpace(in.Description),
		Channel:      strings.TrimSpace(in.Channel),
		DefaultValue: in.DefaultValue,
	})
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, actor.UserID, audit.ActionCreate, "preference_item", created.ID, nil, created)
	return created, nil
}

func (s *Service) DeleteItem(ctx context.Context, actor auth.UserContext, id string) error {
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor.UserID, audit.ActionDelete, "preference_item", id, nil, nil)
	return nil
}

// UserPreferences resolves every item for userID, filling in defaults.
func (s *Service) UserPreferences(ctx context.Context, actor auth.UserContext, userID string) ([]UserPreference, error) {
	if err := authorize(actor, userID); err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, "")
	if err != nil {
		return nil, err
	}
	stored, err := s.store.UserValues(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Merge(items, stored), nil
}

// SetUserPreferences stores values keyed by item key. Unknown keys fail the
// whole update.
func (s *Service) SetUserPreferences(ctx context.Context, actor auth.UserContext, userID string, values map[string]bool) ([]UserPreference, error) {
	if err := authorize(actor, userID); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errs.Invalid("preferences", "must contain at least one value")
	}
	items, err := s.store.ListItems(ctx, "")
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]Item, len(items))
	for _, it := range items {
		byKey[it.Key] = it
	}

	verr := &errs.ValidationError{}
	byID := make(map[string]bool, len(values))
	for key, v := range values {
		it, ok := byKey[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			verr.Add("preferences."+key, "unknown preference item")
			continue
		}
		byID[it.ID] = v
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	before, err := s.store.UserValues(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetUserValues(ctx, userID, byID, s.now().UTC()); err != nil {
		return nil, err
	}
	s.record(ctx, actor.UserID, audit.ActionUpdate, "user_preferences", userID, before, values)
	return s.UserPreferences(ctx, actor, userID)
}

func authorize(actor auth.UserContext, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errs.Invalid("userId", "is required")
	}
	if actor.IsStaff() || actor.UserID == userID {
		return nil
	}
	return ErrNotOwner
}

func (s *Service) record(ctx context.Context, actorID, action, entity, id string, before, after any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actorID, action, entity, id, before, after); err != nil {
		s.log.Warn("audit record failed", zap.String("entityId", id), zap.String("action", action), zap.Error(err))
	}
}
