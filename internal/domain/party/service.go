package party

import (
	"context"
	"strings"

	"consenthub/internal/domain/auth"
)

type Service struct {
	store   StoreAPI
	baseURL string
}

func NewService(store StoreAPI, baseURL string) *Service {
	return &Service{store: store, baseURL: strings.TrimRight(baseURL, "/")}
}

// Get returns the Individual for id. Non-staff actors may only read their own
// party.
func (s *Service) Get(ctx context.Context, actor auth.UserContext, id string) (Individual, error) {
	if !actor.IsStaff() && actor.UserID != id {
		return Individual{}, ErrNotOwner
	}
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return Individual{}, err
	}
	return ToIndividual(rec, s.baseURL), nil
}

func ToIndividual(rec Record, baseURL string) Individual {
	given, family := splitName(rec.Name)
	out := Individual{
		ID:         rec.ID,
		Href:       baseURL + "/api/tmf641/party/" + rec.ID,
		Type:       TypeIndividual,
		FullName:   rec.Name,
		GivenName:  given,
		FamilyName: family,
		Status:     rec.Status,
		ContactMedium: []ContactMedium{{
			MediumType:     "email",
			Preferred:      true,
			Characteristic: map[string]string{"emailAddress": rec.Email},
		}},
		PartyCharacteristic: []Characteristic{{Name: "role", Value: rec.RoleName}},
		CreatedAt:           rec.CreatedAt,
	}
	if rec.Phone != "" {
		out.ContactMedium = append(out.ContactMedium, ContactMedium{
			MediumType:     "phone",
			Characteristic: map[string]string{"phoneNumber": rec.Phone},
		})
	}
	for _, m := range rec.Minors {
		out.RelatedParty = append(out.RelatedParty, RelatedParty{
			ID:           m.ID,
			Name:         m.Name,
			Role:         "minor",
			ReferredType: TypeIndividual,
		})
	}
	return out
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	given, family, ok := strings.Cut(full, " ")
	if !ok {
		return full, ""
	}
	return given, strings.TrimSpace(family)
}
