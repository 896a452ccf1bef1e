package preference

import "time"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	Items       []Item    `json:"items,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Item struct {
	ID           string    `json:"id"`
	CategoryID   string    `json:"categoryId"`
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	Description  string    `json:"description,omitempty"`
	Channel      string    `json:"channel,omitempty"`
	DefaultValue bool      `json:"defaultValue"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CategoryInput struct {
	Name        string
	Description string
	Active      *bool
}

type ItemInput struct {
	Key          string
	Label        string
	Description  string
	Channel      string
	DefaultValue bool
}

// UserPreference is an item resolved for one user: the stored value when
// one exists, the item default otherwise.
type UserPreference struct {
	ItemID     string     `json:"itemId"`
	CategoryID string     `json:"categoryId"`
	Key        string     `json:"key"`
	Label      string     `json:"label"`
	Channel    string     `json:"channel,omitempty"`
	Value      bool       `json:"value"`
	IsDefault  bool       `json:"isDefault"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

type StoredValue struct {
	Value     bool
	UpdatedAt time.Time
}
