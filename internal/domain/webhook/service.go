package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"consenthub/internal/domain/errs"
	"consenthub/internal/platform/events"
	"consenthub/internal/platform/jobs"
	"consenthub/internal/platform/metrics"
	"consenthub/internal/platform/tracing"
)

// Publisher is what other domains use to announce state changes. Publishing
// never fails from the caller's point of view.
type Publisher interface {
	Publish(ctx context.Context, eventType string, resource any)
}

type Dispatcher interface {
	Enqueue(jobType, subjectID string, run jobs.Runner) bool
}

type Service struct {
	store      StoreAPI
	bus        events.Bus
	dispatcher Dispatcher
	client     *http.Client
	log        *zap.Logger
	now        func() time.Time
}

func NewService(store StoreAPI, bus events.Bus, dispatcher Dispatcher, timeout time.Duration, log *zap.Logger) *Service {
	if bus == nil {
		bus = events.NewNoop()
	}
	return &Service{
		store:      store,
		bus:        bus,
		dispatcher: dispatcher,
		client:     &http.Client{Timeout: timeout},
		log:        log,
		now:        time.Now,
	}
}

func NewEnvelope(eventType string, resource any, now time.Time) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		EventTime: now.UTC(),
		EventType: eventType,
		Event:     EventBody{Resource: resource},
		Domain:    EnvelopeDomain,
		Source:    EnvelopeSource,
	}
}

// Register creates an active hub subscription for callback.
func (s *Service) Register(ctx context.Context, actorID, callback, query string) (Subscription, error) {
	callback = strings.TrimSpace(callback)
	if err := validateCallback(callback); err != nil {
		return Subscription{}, err
	}
	events, err := ParseQuery(query)
	if err != nil {
		return Subscription{}, err
	}
	return s.store.CreateSubscription(ctx, Subscription{
		URL:       callback,
		Events:    events,
		Status:    StatusActive,
		CreatedBy: actorID,
	})
}

func (s *Service) Unregister(ctx context.Context, id string) error {
	return s.store.DeleteSubscription(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Subscription, error) {
	return s.store.ListSubscriptions(ctx)
}

func (s *Service) Deliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error) {
	return s.store.ListDeliveries(ctx, webhookID, limit)
}

func validateCallback(raw string) error {
	if raw == "" {
		return errs.Invalid("callback", "is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return errs.Invalid("callback", "must be an absolute http or https URL")
	}
	return nil
}

// Publish emits the event on the bus and queues HTTP delivery to matching
// subscribers. Delivery is best-effort and at-most-once: there is no retry and
// failures are only logged and recorded.
func (s *Service) Publish(ctx context.Context, eventType string, resource any) {
	env := NewEnvelope(eventType, resource, s.now())

	payload, err := json.Marshal(env)
	if err != nil {
		s.log.Error("event marshal failed", zap.String("eventType", eventType), zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, events.Subject(eventType), payload); err != nil {
		s.log.Warn("event bus publish failed", zap.String("eventType", eventType), zap.String("eventId", env.EventID), zap.Error(err))
	}

	if s.dispatcher == nil {
		return
	}
	queued := s.dispatcher.Enqueue(jobs.JobWebhookDelivery, env.EventID, func(ctx context.Context) (any, error) {
		return s.Deliver(ctx, env)
	})
	if !queued {
		s.log.Warn("webhook delivery dropped", zap.String("eventType", eventType), zap.String("eventId", env.EventID))
	}
}

// Deliver posts env to every active subscription that matches its type.
func (s *Service) Deliver(ctx context.Context, env Envelope) (DeliveryReport, error) {
	ctx, span := tracing.Tracer("webhook").Start(ctx, "webhook.deliver")
	defer span.End()
	span.SetAttributes(attribute.String("event.type", env.EventType), attribute.String("event.id", env.EventID))

	report := DeliveryReport{EventID: env.EventID, EventType: env.EventType}

	subs, err := s.store.ListActiveSubscriptions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list subscriptions")
		return report, err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return report, err
	}

	for _, sub := range subs {
		if !sub.Matches(env.EventType) {
			continue
		}
		report.Matched++

		statusCode, sendErr := s.send(ctx, sub.URL, env, body)
		d := Delivery{
			WebhookID:   sub.ID,
			EventID:     env.EventID,
			EventType:   env.EventType,
			Status:      DeliveryDelivered,
			StatusCode:  statusCode,
			AttemptedAt: s.now().UTC(),
		}
		if sendErr != nil {
			report.Failed++
			d.Status = DeliveryFailed
			d.Error = sendErr.Error()
			s.log.Warn("webhook delivery failed",
				zap.String("webhookId", sub.ID),
				zap.String("url", sub.URL),
				zap.String("eventType", env.EventType),
				zap.String("eventId", env.EventID),
				zap.Error(sendErr),
			)
		} else {
			report.Delivered++
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues(env.EventType, d.Status).Inc()

		if err := s.store.RecordDelivery(ctx, d); err != nil {
			s.log.Warn("webhook delivery record failed", zap.String("webhookId", sub.ID), zap.Error(err))
		}
	}

	span.SetAttributes(attribute.Int("webhook.matched", report.Matched), attribute.Int("webhook.failed", report.Failed))
	return report, nil
}

func (s *Service) send(ctx context.Context, target string, env Envelope, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", errs.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", env.EventType)
	req.Header.Set("X-Event-Id", env.EventID)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: unexpected status %d", errs.ErrUpstream, resp.StatusCode)
	}
	return resp.StatusCode, nil
}
