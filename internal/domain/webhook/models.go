package webhook

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

const (
	ConsentCreateEvent              = "ConsentCreateEvent"
	ConsentStateChangeEvent         = "ConsentStateChangeEvent"
	DSARCreateEvent                 = "DSARCreateEvent"
	DSARStateChangeEvent            = "DSARStateChangeEvent"
	DSARCompletedEvent              = "DSARCompletedEvent"
	DSARRejectedEvent               = "DSARRejectedEvent"
	PrivacyNoticeVersionCreateEvent = "PrivacyNoticeVersionCreateEvent"
)

const (
	EnvelopeDomain = "privacy"
	EnvelopeSource = "consenthub"
)

type Subscription struct {
	ID        string    `json:"id"`
	URL       string    `json:"callback"`
	Events    string    `json:"query"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Envelope is the TMF669-style notification body delivered to subscribers.
type Envelope struct {
	EventID   string    `json:"eventId"`
	EventTime time.Time `json:"eventTime"`
	EventType string    `json:"eventType"`
	Event     EventBody `json:"event"`
	Domain    string    `json:"domain"`
	Source    string    `json:"source"`
}

type EventBody struct {
	Resource any `json:"resource"`
}

type Delivery struct {
	ID          string    `json:"id"`
	WebhookID   string    `json:"webhookId"`
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType"`
	Status      string    `json:"status"`
	StatusCode  int       `json:"statusCode"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

type DeliveryReport struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	Matched   int    `json:"matched"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}
