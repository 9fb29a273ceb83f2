package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/breatheroute/gios/internal/platform"
)

// StatePublisher publishes entity state changes to a Pub/Sub topic.
type StatePublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

var _ platform.StatePublisher = (*StatePublisher)(nil)

// NewStatePublisher creates a publisher for topic in projectID.
func NewStatePublisher(ctx context.Context, projectID, topic string) (*StatePublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &StatePublisher{
		client:    client,
		publisher: client.Publisher(topic),
	}, nil
}

// PublishState sends state and waits for the server to accept it.
func (p *StatePublisher) PublishState(ctx context.Context, state platform.State) error {
	msg, err := stateMessage(state)
	if err != nil {
		return err
	}
	if _, err := p.publisher.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publishing state of %s: %w", state.EntityID, err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (p *StatePublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// stateMessage encodes a state change as a Pub/Sub message.
func stateMessage(state platform.State) (*pubsub.Message, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding state of %s: %w", state.EntityID, err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":   uuid.New().String(),
			"event_type": "state_changed",
			"entity_id":  state.EntityID,
		},
	}, nil
}
