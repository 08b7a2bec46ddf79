package redis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/benchrig/benchrig/pkg/state"
)

// DefaultEvent is the event name carried by every published message.
const DefaultEvent = "state"

// Message is the JSON payload published for one state mutation.
type Message struct {
	Event     string   `json:"event"`
	Path      string   `json:"path"`
	Content   any      `json:"content"`
	Operation state.Op `json:"operation"`
}

// Publisher mirrors state tree mutations onto a Redis pub/sub channel
// named after the room.
type Publisher struct {
	client  backend.UniversalClient
	room    string
	event   string
	prefix  state.Path
	timeout time.Duration
	logger  *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPathPrefix prepends prefix to every published path.
func WithPathPrefix(prefix string) PublisherOption {
	return func(p *Publisher) {
		p.prefix = state.ParsePath(prefix)
	}
}

// WithEventName overrides DefaultEvent.
func WithEventName(name string) PublisherOption {
	return func(p *Publisher) {
		p.event = name
	}
}

// WithPublishTimeout bounds each PUBLISH call.
func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher for room.
func NewPublisher(client backend.UniversalClient, room string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:  client,
		room:    room,
		event:   DefaultEvent,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Attach subscribes to tree and publishes every mutation in commit order.
// Publish failures are logged; the mutation itself is never affected.
func (p *Publisher) Attach(tree *state.Tree) (detach func()) {
	p.logger.Debug("Publishing state events", "room", p.room, "mount", tree.MountPath().String())
	return tree.Subscribe(func(ev state.Event) {
		if err := p.Publish(context.Background(), ev); err != nil {
			p.logger.Warn("Failed to publish state event", "room", p.room, "path", ev.Path.String(), "err", err)
		}
	})
}

// Publish sends one event to the room.
func (p *Publisher) Publish(ctx context.Context, ev state.Event) error {
	path := append(slices.Clone(p.prefix), ev.Path...)
	data, err := json.Marshal(Message{
		Event:     p.event,
		Path:      path.String(),
		Content:   ev.Content,
		Operation: ev.Op,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Publish(ctx, p.room, data).Err()
}
