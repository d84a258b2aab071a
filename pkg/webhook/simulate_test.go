package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// capturePublisher records the single delivery made by Simulate.
type capturePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (c *capturePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	c.topic = topic
	c.payload = append([]byte(nil), payload...)
	return c.err
}

func (c *capturePublisher) Close() error {
	return nil
}

// TestSimulatePayloadShape tests that the delivered payload is exactly
// {"pullrequest": ..., "repository": ...} with the raw responses embedded
// unchanged.
func TestSimulatePayloadShape(t *testing.T) {
	pub := &capturePublisher{}
	pr := json.RawMessage(`{"id":42,"title":"Dummy PR","unknown_field":1}`)
	repo := json.RawMessage(`{"uuid":"{x}","links":{"clone":[]}}`)

	err := Simulate(context.Background(), pub, "http://receiver/webhook", pr, repo)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if pub.topic != "http://receiver/webhook" {
		t.Fatalf("expected receiver url as topic, got %q", pub.topic)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(pub.payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected exactly two payload fields, got %d: %s", len(decoded), pub.payload)
	}
	if string(decoded["pullrequest"]) != string(pr) {
		t.Fatalf("expected raw pull request embedded unchanged, got %s", decoded["pullrequest"])
	}
	if string(decoded["repository"]) != string(repo) {
		t.Fatalf("expected raw repository embedded unchanged, got %s", decoded["repository"])
	}
}

// TestSimulatePropagatesDeliveryError tests the fail-fast contract.
func TestSimulatePropagatesDeliveryError(t *testing.T) {
	pub := &capturePublisher{err: errors.New("receiver down")}
	err := Simulate(context.Background(), pub, "http://receiver/webhook", json.RawMessage(`{}`), json.RawMessage(`{}`))
	if err == nil {
		t.Fatalf("expected delivery error to propagate")
	}
}
