package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/errs"
)

type fakeStore map[string]Record

func (f fakeStore) GetRecord(_ context.Context, id string) (Record, error) {
	rec, ok := f[id]
	if !ok {
		return Record{}, ErrPartyNotFound
	}
	return rec, nil
}

func TestToIndividual(t *testing.T) {
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	got := ToIndividual(Record{
		ID:        "u-1",
		Email:     "ada@example.com",
		Name:      "Ada  King Lovelace",
		Phone:     "+14155550100",
		RoleName:  auth.RoleGuardian,
		Status:    "active",
		CreatedAt: created,
		Minors:    []Minor{{ID: "m-1", Name: "Byron", Relationship: "child"}},
	}, "https://privacy.example.com")

	assert.Equal(t, "https://privacy.example.com/api/tmf641/party/u-1", got.Href)
	assert.Equal(t, TypeIndividual, got.Type)
	assert.Equal(t, "Ada", got.GivenName)
	assert.Equal(t, "King Lovelace", got.FamilyName)
	require.Len(t, got.ContactMedium, 2)
	assert.Equal(t, "ada@example.com", got.ContactMedium[0].Characteristic["emailAddress"])
	assert.Equal(t, "+14155550100", got.ContactMedium[1].Characteristic["phoneNumber"])
	assert.Equal(t, []Characteristic{{Name: "role", Value: auth.RoleGuardian}}, got.PartyCharacteristic)
	require.Len(t, got.RelatedParty, 1)
	assert.Equal(t, "minor", got.RelatedParty[0].Role)
	assert.Equal(t, created, got.CreatedAt)
}

func TestToIndividualSingleNameNoPhone(t *testing.T) {
	got := ToIndividual(Record{ID: "u-2", Name: "Cher", Email: "c@example.com"}, "")
	assert.Equal(t, "Cher", got.GivenName)
	assert.Empty(t, got.FamilyName)
	assert.Len(t, got.ContactMedium, 1)
	assert.Empty(t, got.RelatedParty)
}

func TestGetAuthorization(t *testing.T) {
	svc := NewService(fakeStore{
		"u-1": {ID: "u-1", Name: "Ada", RoleName: auth.RoleCustomer},
		"u-2": {ID: "u-2", Name: "Bob", RoleName: auth.RoleCustomer},
	}, "http://localhost:8080/")
	ctx := context.Background()
	customer := auth.UserContext{UserID: "u-1", RoleName: auth.RoleCustomer}
	csr := auth.UserContext{UserID: "s-1", RoleName: auth.RoleCSR}

	own, err := svc.Get(ctx, customer, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/tmf641/party/u-1", own.Href)

	_, err = svc.Get(ctx, customer, "u-2")
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = svc.Get(ctx, csr, "u-2")
	require.NoError(t, err)

	_, err = svc.Get(ctx, csr, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
