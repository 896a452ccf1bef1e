package preferencehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/errs"
	"consenthub/internal/domain/preference"
	"consenthub/internal/transport/http/middleware"
)

type fakeService struct {
	categories map[string]preference.Category
	items      map[string][]preference.Item
	values     map[string]map[string]bool
}

func newFake() *fakeService {
	return &fakeService{
		categories: map[string]preference.Category{"cat-1": {ID: "cat-1", Name: "Marketing", Active: true}},
		items: map[string][]preference.Item{"cat-1": {
			{ID: "it-1", CategoryID: "cat-1", Key: "email_offers", Label: "Email offers", DefaultValue: true},
		}},
		values: map[string]map[string]bool{},
	}
}

func (f *fakeService) ListCategories(context.Context) ([]preference.Category, error) {
	var out []preference.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeService) GetCategory(_ context.Context, id string) (preference.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return preference.Category{}, preference.ErrCategoryNotFound
	}
	return c, nil
}

func (f *fakeService) CreateCategory(_ context.Context, _ auth.UserContext, in preference.CategoryInput) (preference.Category, error) {
	if in.Name == "" {
		return preference.Category{}, errs.Invalid("name", "is required")
	}
	c := preference.Category{ID: "cat-new", Name: in.Name, Active: in.Active == nil || *in.Active}
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeService) UpdateCategory(ctx context.Context, _ auth.UserContext, id string, in preference.CategoryInput) (preference.Category, error) {
	c, err := f.GetCategory(ctx, id)
	if err != nil {
		return preference.Category{}, err
	}
	c.Name = in.Name
	f.categories[id] = c
	return c, nil
}

func (f *fakeService) DeleteCategory(ctx context.Context, _ auth.UserContext, id string) error {
	if _, err := f.GetCategory(ctx, id); err != nil {
		return err
	}
	if len(f.items[id]) > 0 {
		return preference.ErrCategoryInUse
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeService) ListItems(ctx context.Context, categoryID string) ([]preference.Item, error) {
	if _, err := f.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	return f.items[categoryID], nil
}

func (f *fakeService) CreateItem(ctx context.Context, _ auth.UserContext, categoryID string, in preference.ItemInput) (preference.Item, error) {
	if _, err := f.GetCategory(ctx, categoryID); err != nil {
		return preference.Item{}, err
	}
	it := preference.Item{ID: "it-new", CategoryID: categoryID, Key: in.Key, Label: in.Label, DefaultValue: in.DefaultValue}
	f.items[categoryID] = append(f.items[categoryID], it)
	return it, nil
}

func (f *fakeService) DeleteItem(context.Context, auth.UserContext, string) error {
	return preference.ErrItemNotFound
}

func (f *fakeService) UserPreferences(_ context.Context, actor auth.UserContext, userID string) ([]preference.UserPreference, error) {
	if !actor.IsStaff() && actor.UserID != userID {
		return nil, preference.ErrNotOwner
	}
	var all []preference.Item
	for _, items := range f.items {
		all = append(all, items...)
	}
	stored := map[string]preference.StoredValue{}
	for id, v := range f.values[userID] {
		stored[id] = preference.StoredValue{Value: v}
	}
	return preference.Merge(all, stored), nil
}

func (f *fakeService) SetUserPreferences(ctx context.Context, actor auth.UserContext, userID string, values map[string]bool) ([]preference.UserPreference, error) {
	if !actor.IsStaff() && actor.UserID != userID {
		return nil, preference.ErrNotOwner
	}
	if f.values[userID] == nil {
		f.values[userID] = map[string]bool{}
	}
	for key, v := range values {
		if key != "email_offers" {
			return nil, errs.Invalid("preferences."+key, "unknown preference item")
		}
		f.values[userID]["it-1"] = v
	}
	return f.UserPreferences(ctx, actor, userID)
}

type allowAll struct{}

func (allowAll) HasPermission(context.Context, string, string) (bool, error) { return true, nil }

func serve(t *testing.T, svc Service, user auth.UserContext, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	NewHandler(svc, allowAll{}).RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	var env map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

var (
	admin    = auth.UserContext{UserID: "admin-1", RoleName: auth.RoleAdmin}
	customer = auth.UserContext{UserID: "u-1", RoleName: auth.RoleCustomer}
)

func TestCategoryRoutes(t *testing.T) {
	svc := newFake()
	rec, _ := serve(t, svc, admin, http.MethodPost, "/api/v1/preferences/categories", `{"name":"Product news","active":false}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, svc.categories["cat-new"].Active)

	rec, env := serve(t, svc, admin, http.MethodDelete, "/api/v1/preferences/categories/cat-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", env["error"].(map[string]any)["code"])

	rec, _ = serve(t, svc, admin, http.MethodDelete, "/api/v1/preferences/categories/cat-new", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(t, svc, admin, http.MethodGet, "/api/v1/preferences/categories/missing/items", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, svc, admin, http.MethodPost, "/api/v1/preferences/categories", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserPreferences(t *testing.T) {
	svc := newFake()
	rec, env := serve(t, svc, customer, http.MethodGet, "/api/v1/preferences/users/u-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := env["data"].([]any)[0].(map[string]any)
	assert.Equal(t, true, first["value"])
	assert.Equal(t, true, first["isDefault"])

	rec, env = serve(t, svc, customer, http.MethodPut, "/api/v1/preferences/users/u-1", `{"preferences":{"email_offers":false}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	first = env["data"].([]any)[0].(map[string]any)
	assert.Equal(t, false, first["value"])
	assert.Equal(t, false, first["isDefault"])

	rec, _ = serve(t, svc, customer, http.MethodPut, "/api/v1/preferences/users/u-1", `{"preferences":{"sms_blast":true}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, svc, customer, http.MethodGet, "/api/v1/preferences/users/u-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
