package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kilianp07/factoryccu/core/model"
	coremqtt "github.com/kilianp07/factoryccu/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// Publisher encodes controller messages as JSON and publishes them on the
// device bus.
type Publisher struct {
	client Client
	topics Topics
	// family resolves the topic family of a serial number for instant
	// actions. Unknown serials are treated as modules.
	family func(serial string) string
}

// NewPublisher returns a publisher over client. family may be nil.
func NewPublisher(client Client, topics Topics, family func(serial string) string) *Publisher {
	if family == nil {
		family = func(string) string { return FamilyModule }
	}
	return &Publisher{client: client, topics: topics, family: family}
}

func (p *Publisher) publish(ctx context.Context, topic string, v any, retained bool, class string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return p.client.Publish(topic, payload, retained, class)
}

// PublishVehicleOrder sends a node/edge order to a vehicle.
func (p *Publisher) PublishVehicleOrder(ctx context.Context, o model.VehicleOrder) error {
	return p.publish(ctx, p.topics.Order(FamilyVehicle, o.SerialNumber), o, false, coremqtt.ClassCommand)
}

// PublishModuleCommand sends a production command to a module.
func (p *Publisher) PublishModuleCommand(ctx context.Context, c model.ModuleCommand) error {
	return p.publish(ctx, p.topics.Order(FamilyModule, c.SerialNumber), c, false, coremqtt.ClassCommand)
}

// PublishInstantAction sends an instant action to a module or vehicle.
func (p *Publisher) PublishInstantAction(ctx context.Context, a model.InstantAction) error {
	topic := p.topics.InstantAction(p.family(a.SerialNumber), a.SerialNumber)
	return p.publish(ctx, topic, a, false, coremqtt.ClassCommand)
}

// PublishJobSnapshots publishes the retained active and completed job lists.
func (p *Publisher) PublishJobSnapshots(ctx context.Context, active, completed model.JobSnapshot) error {
	if err := p.publish(ctx, p.topics.OrderActive(), active, true, coremqtt.ClassSnapshot); err != nil {
		return err
	}
	return p.publish(ctx, p.topics.OrderCompleted(), completed, true, coremqtt.ClassSnapshot)
}

// PublishPairing publishes the retained pairing and availability snapshot.
func (p *Publisher) PublishPairing(ctx context.Context, s model.PairingSnapshot) error {
	return p.publish(ctx, p.topics.PairingState(), s, true, coremqtt.ClassSnapshot)
}

// PublishJobRequest submits a job request to a running controller.
func (p *Publisher) PublishJobRequest(ctx context.Context, r model.JobRequest) error {
	return p.publish(ctx, p.topics.OrderRequest(), r, false, coremqtt.ClassRequest)
}

// Message is a publication recorded by MockClient.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
	Class    string
}

// MockClient is an in-memory Client used in tests. Publications are recorded
// and delivered synchronously to matching subscriptions.
type MockClient struct {
	mu         sync.Mutex
	Messages   []Message
	FailTopics map[string]bool
	subs       map[string]coremqtt.Handler
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{FailTopics: make(map[string]bool), subs: make(map[string]coremqtt.Handler)}
}

// Publish records the message or returns an error if configured to fail.
func (m *MockClient) Publish(topic string, payload []byte, retained bool, class string) error {
	m.mu.Lock()
	if m.FailTopics[topic] {
		m.mu.Unlock()
		return fmt.Errorf("publish failed")
	}
	m.Messages = append(m.Messages, Message{Topic: topic, Payload: payload, Retained: retained, Class: class})
	var handlers []coremqtt.Handler
	for filter, h := range m.subs {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

// Subscribe registers h for topic.
func (m *MockClient) Subscribe(topic, _ string, h coremqtt.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = h
	return nil
}

// On returns the recorded messages published on topic.
func (m *MockClient) On(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.Messages {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// Match reports whether topic matches an MQTT subscription filter.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
