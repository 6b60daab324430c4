package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/registry"
)

const testTopic = "fulfillment-events"

func TestPublishKeysMessagesByAggregate(t *testing.T) {
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderStatusChangedEvent{
		OrderID:     orderID,
		OrderNumber: "ORD-2026-000042",
		UserID:      uuid.New(),
		From:        enums.OrderStatusProcessing,
		To:          enums.OrderStatusShipped,
	})
	require.NoError(t, err)
	eventID := uuid.NewString()
	occurred := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID, OccurredAt: occurred, Data: data})
	require.NoError(t, err)
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelope,
	}

	eventRegistry, err := registry.NewEventRegistry(config.PubSubConfig{FulfillmentTopic: testTopic})
	require.NoError(t, err)
	pub := &fakePublisher{}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	svc := newTestService(t, repo, eventRegistry, nil)
	var topics []string
	svc.newPublisher = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}

	result, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batchResult{Claimed: 1, Published: 1}, result)
	assert.Equal(t, []string{testTopic}, topics)

	require.Len(t, pub.sent, 1)
	msg := pub.sent[0]
	assert.Equal(t, "order:"+orderID.String(), msg.OrderingKey)
	assert.Equal(t, string(enums.EventOrderStatusChanged), msg.Attributes["event_type"])
	assert.Equal(t, eventID, msg.Attributes["event_id"])
	assert.Equal(t, orderID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, occurred.Format(time.RFC3339Nano), msg.Attributes["occurred_at"])
	assert.Equal(t, []byte(event.Payload), msg.Data)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.published)
}

func TestPublishReusesOnePublisherPerTopic(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		orderEvent(t, uuid.New()),
		orderEvent(t, uuid.New()),
		orderEvent(t, uuid.New()),
	}}
	svc := newTestService(t, repo, resolvingRegistry(), nil)
	created := 0
	pub := &fakePublisher{}
	svc.newPublisher = func(string) publisher {
		created++
		return pub
	}

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	_, err = svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Len(t, pub.sent, 6)
}

func TestFailedEventHoldsBackLaterEventsOfSameAggregate(t *testing.T) {
	orderID, returnID := uuid.New(), uuid.New()
	first := orderEvent(t, orderID)
	second := orderEvent(t, orderID)
	other := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventReturnStatusChanged,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   returnID,
		Payload:       envelopePayload(t),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{first, other, second}}
	pub := &fakePublisher{failKeys: map[string]bool{"order:" + orderID.String(): true}}
	svc := newTestService(t, repo, resolvingRegistry(), nil)
	svc.newPublisher = func(string) publisher { return pub }

	result, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batchResult{Claimed: 3, Published: 1, Failed: 1, Held: 1}, result)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{other.ID}, repo.published)
	assert.Equal(t, []string{"order:" + orderID.String()}, pub.resumed)
	for _, msg := range pub.sent {
		assert.NotEqual(t, second.ID.String(), msg.Attributes["event_id"], "held event must not be sent")
	}
}

func TestUnresolvableEventIsDeadLettered(t *testing.T) {
	event := orderEvent(t, uuid.New())
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}, nil)
	svc.dlq = dlq

	result, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batchResult{Claimed: 1, DeadLettered: 1}, result)
	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, []byte(event.Payload), []byte(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "invalid payload")
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestLastAttemptIsDeadLettered(t *testing.T) {
	event := orderEvent(t, uuid.New())
	event.AttemptCount = 1
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, resolvingRegistry(), &config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2})
	svc.dlq = dlq
	svc.newPublisher = func(string) publisher {
		return &fakePublisher{failKeys: map[string]bool{orderingKey(event): true}}
	}

	result, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batchResult{Claimed: 1, DeadLettered: 1}, result)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Empty(t, repo.failed)
}

func TestMissingPublisherIsDeadLettered(t *testing.T) {
	event := orderEvent(t, uuid.New())
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, resolvingRegistry(), nil)
	svc.dlq = dlq
	svc.newPublisher = func(string) publisher { return nil }

	result, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeadLettered)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonUnroutable, dlq.entries[0].ErrorReason)
	assert.Empty(t, svc.publishers)
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, resolvingRegistry(), &config.OutboxConfig{})
	assert.Equal(t, defaultBatchSize, svc.batchSize)
	assert.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	assert.Equal(t, time.Duration(defaultPollMs)*time.Millisecond, svc.pollInterval)

	_, err := NewService(ServiceParams{Config: &config.Config{}})
	assert.EqualError(t, err, "logger is required")
}

func TestNextBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 2*base, nextBackoff(0, base, time.Second))
	assert.Equal(t, 800*time.Millisecond, nextBackoff(400*time.Millisecond, base, time.Second))
	assert.Equal(t, time.Second, nextBackoff(800*time.Millisecond, base, time.Second))
}

func newTestService(t *testing.T, repo outboxRepository, resolver registryResolver, outboxCfg *config.OutboxConfig) *Service {
	t.Helper()
	cfg := &config.Config{Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 100, MaxAttempts: 5}}
	if outboxCfg != nil {
		cfg.Outbox = *outboxCfg
	}
	svc, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               fakeDB{},
		PubSub:           fakePubSubClient{},
		Repository:       repo,
		Registry:         resolver,
		PublisherFactory: func(string) publisher { return &fakePublisher{} },
		DLQRepository:    &fakeDLQRepo{},
	})
	require.NoError(t, err)
	return svc
}

func orderEvent(t *testing.T, orderID uuid.UUID) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelopePayload(t),
	}
}

func envelopePayload(t *testing.T) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return payload
}

func resolvingRegistry() *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: testTopic},
		Payload:    &payloads.OrderStatusChangedEvent{},
	}}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

// fakePublisher fails every message whose ordering key is in failKeys.
type fakePublisher struct {
	failKeys map[string]bool
	sent     []*gcppubsub.Message
	resumed  []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if f.failKeys[msg.OrderingKey] {
		return fakePublishResult{err: errors.New("deadline exceeded")}
	}
	return fakePublishResult{}
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
