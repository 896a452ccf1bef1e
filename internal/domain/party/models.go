package party

import "time"

const TypeIndividual = "Individual"

// Individual is the TMF641 view of a ConsentHub user.
type Individual struct {
	ID                  string           `json:"id"`
	Href                string           `json:"href"`
	Type                string           `json:"@type"`
	FullName            string           `json:"fullName"`
	GivenName           string           `json:"givenName,omitempty"`
	FamilyName          string           `json:"familyName,omitempty"`
	Status              string           `json:"status"`
	ContactMedium       []ContactMedium  `json:"contactMedium"`
	PartyCharacteristic []Characteristic `json:"partyCharacteristic"`
	RelatedParty        []RelatedParty   `json:"relatedParty,omitempty"`
	CreatedAt           time.Time        `json:"creationDate"`
}

type ContactMedium struct {
	MediumType     string            `json:"mediumType"`
	Preferred      bool              `json:"preferred"`
	Characteristic map[string]string `json:"characteristic"`
}

type Characteristic struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type RelatedParty struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	ReferredType string `json:"@referredType"`
}

// Record is the raw user row a party is built from.
type Record struct {
	ID        string
	Email     string
	Name      string
	Phone     string
	RoleName  string
	Status    string
	CreatedAt time.Time
	Minors    []Minor
}

type Minor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
}
