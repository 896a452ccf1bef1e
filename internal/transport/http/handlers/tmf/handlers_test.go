package tmfhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/consent"
	"consenthub/internal/domain/errs"
	"consenthub/internal/domain/party"
	"consenthub/internal/domain/webhook"
	"consenthub/internal/transport/http/middleware"
)

type fakeConsents struct {
	created []consent.NewConsent
	records map[string]consent.Consent
	filter  consent.Filter
}

func (f *fakeConsents) Create(_ context.Context, _ auth.UserContext, in consent.NewConsent) (consent.Consent, error) {
	if in.PartyID == "" {
		return consent.Consent{}, errs.Invalid("partyId", "is required")
	}
	f.created = append(f.created, in)
	c := consent.Consent{ID: "c-9", PartyID: in.PartyID, Purpose: in.Purpose, Status: in.Status, ValidFrom: in.ValidFrom, ValidTo: in.ValidTo}
	f.records[c.ID] = c
	return c, nil
}

func (f *fakeConsents) Get(_ context.Context, _ auth.UserContext, id string) (consent.Consent, error) {
	c, ok := f.records[id]
	if !ok {
		return consent.Consent{}, consent.ErrConsentNotFound
	}
	return c, nil
}

func (f *fakeConsents) List(_ context.Context, _ auth.UserContext, filter consent.Filter, _, _ int) ([]consent.Consent, int, error) {
	f.filter = filter
	out := []consent.Consent{}
	for _, c := range f.records {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (f *fakeConsents) UpdateStatus(ctx context.Context, actor auth.UserContext, id string, status consent.Status, _ string) (consent.Consent, error) {
	c, err := f.Get(ctx, actor, id)
	if err != nil {
		return consent.Consent{}, err
	}
	c.Status = status
	f.records[id] = c
	return c, nil
}

type fakeHub struct {
	subs map[string]webhook.Subscription
}

func (f *fakeHub) Register(_ context.Context, actorID, callback, query string) (webhook.Subscription, error) {
	if callback == "" {
		return webhook.Subscription{}, errs.Invalid("callback", "is required")
	}
	events, err := webhook.ParseQuery(query)
	if err != nil {
		return webhook.Subscription{}, err
	}
	sub := webhook.Subscription{ID: "sub-1", URL: callback, Events: events, Status: webhook.StatusActive, CreatedBy: actorID}
	f.subs[sub.ID] = sub
	return sub, nil
}

func (f *fakeHub) Unregister(_ context.Context, id string) error {
	if _, ok := f.subs[id]; !ok {
		return webhook.ErrSubscriptionNotFound
	}
	delete(f.subs, id)
	return nil
}

func (f *fakeHub) List(context.Context) ([]webhook.Subscription, error) {
	out := []webhook.Subscription{}
	for _, s := range f.subs {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeHub) Deliveries(context.Context, string, int) ([]webhook.Delivery, error) {
	return nil, nil
}

type fakeParties struct{}

func (fakeParties) Get(_ context.Context, actor auth.UserContext, id string) (party.Individual, error) {
	if !actor.IsStaff() && actor.UserID != id {
		return party.Individual{}, party.ErrNotOwner
	}
	return party.ToIndividual(party.Record{ID: id, Name: "Ada Lovelace", Status: "active"}, "https://hub.example.com"), nil
}

type allowAll struct{}

func (allowAll) HasPermission(context.Context, string, string) (bool, error) { return true, nil }

type fixture struct {
	consents *fakeConsents
	hub      *fakeHub
	router   http.Handler
}

func newFixture(t *testing.T, user auth.UserContext) fixture {
	t.Helper()
	f := fixture{
		consents: &fakeConsents{records: map[string]consent.Consent{
			"c-1": {ID: "c-1", PartyID: "p-1", Purpose: "marketing", Status: consent.StatusGranted, PrivacyNoticeID: "n-1", VersionAccepted: "2.0"},
		}},
		hub: &fakeHub{subs: map[string]webhook.Subscription{}},
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	NewHandler(f.consents, f.hub, fakeParties{}, allowAll{}, "https://hub.example.com/", zaptest.NewLogger(t)).RegisterRoutes(r)
	f.router = r
	return f
}

func (f fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	var env map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

var csr = auth.UserContext{UserID: "csr-1", RoleName: auth.RoleCSR}

func TestToPrivacyConsent(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pc := toPrivacyConsent(consent.Consent{
		ID:              "c-1",
		PartyID:         "minor-1",
		Purpose:         "educational_content",
		Status:          consent.StatusGranted,
		GuardianID:      "g-1",
		PrivacyNoticeID: "n-1",
		VersionAccepted: "1.2",
		ValidFrom:       &from,
	}, "https://hub.example.com")

	assert.Equal(t, "https://hub.example.com/api/tmf632/privacyConsent/c-1", pc.Href)
	assert.Equal(t, "PrivacyConsent", pc.Type)
	assert.Equal(t, "granted", pc.State)
	require.NotNil(t, pc.ValidFor)
	assert.Equal(t, from, *pc.ValidFor.StartDateTime)
	assert.Nil(t, pc.ValidFor.EndDateTime)
	assert.Equal(t, &PrivacyNoticeRef{ID: "n-1", Version: "1.2"}, pc.PrivacyNotice)
	assert.Equal(t, []RelatedPartyRef{
		{ID: "minor-1", Role: "customer", ReferredType: "Individual"},
		{ID: "g-1", Role: "guardian", ReferredType: "Individual"},
	}, pc.RelatedParty)
}

func TestPartyFromPrefersCustomerRole(t *testing.T) {
	assert.Equal(t, "p-2", partyFrom([]RelatedPartyRef{{ID: "p-1", Role: "agent"}, {ID: "p-2", Role: "Customer"}}))
	assert.Equal(t, "p-1", partyFrom([]RelatedPartyRef{{ID: "p-1", Role: "agent"}}))
	assert.Empty(t, partyFrom(nil))
}

func TestPrivacyConsentCreateAndPatch(t *testing.T) {
	f := newFixture(t, csr)
	rec, env := f.do(t, http.MethodPost, "/api/tmf632/privacyConsent", `{
		"purpose":"marketing",
		"state":"Denied",
		"validFor":{"startDateTime":"2026-02-01T00:00:00Z"},
		"privacyNotice":{"id":"n-1","version":"2.0"},
		"relatedParty":[{"id":"p-7","role":"customer"}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, env)
	assert.Equal(t, "https://hub.example.com/api/tmf632/privacyConsent/c-9", rec.Header().Get("Location"))
	require.Len(t, f.consents.created, 1)
	in := f.consents.created[0]
	assert.Equal(t, "p-7", in.PartyID)
	assert.Equal(t, consent.StatusDenied, in.Status)
	assert.Equal(t, "tmf632", in.Source)
	assert.Equal(t, "2.0", in.VersionAccepted)
	require.NotNil(t, in.ValidFrom)

	rec, env = f.do(t, http.MethodPatch, "/api/tmf632/privacyConsent/c-1", `{"state":"revoked","reason":"opt-out"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "revoked", env["data"].(map[string]any)["state"])

	rec, _ = f.do(t, http.MethodPatch, "/api/tmf632/privacyConsent/c-1", `{"state":"paused"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/tmf632/privacyConsent", `{"purpose":"marketing"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrivacyConsentList(t *testing.T) {
	f := newFixture(t, csr)
	rec, env := f.do(t, http.MethodGet, "/api/tmf632/privacyConsent?relatedParty.id=p-1&state=granted", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, consent.Filter{PartyID: "p-1", Status: consent.StatusGranted}, f.consents.filter)
	assert.Len(t, env["data"], 1)
}

func TestHubLifecycle(t *testing.T) {
	f := newFixture(t, auth.UserContext{UserID: "admin-1", RoleName: auth.RoleAdmin})
	rec, env := f.do(t, http.MethodPost, "/api/tmf669/hub", `{"callback":"https://listener.example.com/events","query":"eventType=ConsentCreateEvent"}`)
	require.Equal(t, http.StatusCreated, rec.Code, env)
	assert.Equal(t, "ConsentCreateEvent", f.hub.subs["sub-1"].Events)
	assert.Equal(t, "admin-1", f.hub.subs["sub-1"].CreatedBy)

	rec, env = f.do(t, http.MethodGet, "/api/tmf669/hub", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env["data"], 1)

	rec, _ = f.do(t, http.MethodDelete, "/api/tmf669/hub/sub-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = f.do(t, http.MethodDelete, "/api/tmf669/hub/sub-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env["error"].(map[string]any)["code"])

	rec, _ = f.do(t, http.MethodPost, "/api/tmf669/hub", `{"query":"*"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPartyLookup(t *testing.T) {
	f := newFixture(t, auth.UserContext{UserID: "p-1", RoleName: auth.RoleCustomer})
	rec, env := f.do(t, http.MethodGet, "/api/tmf641/party/p-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := env["data"].(map[string]any)
	assert.Equal(t, "Individual", data["@type"])
	assert.Equal(t, "Ada", data["givenName"])

	rec, _ = f.do(t, http.MethodGet, "/api/tmf641/party/p-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
