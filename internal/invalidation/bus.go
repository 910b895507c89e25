// Package invalidation fans cache invalidations out to other processes
// sharing a Wiki.js instance over NATS.
package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"
)

// Static errors for err113 compliance.
var (
	ErrBusClosed         = errors.New("invalidation bus is closed")
	ErrAlreadySubscribed = errors.New("invalidation bus already subscribed")
)

// Conn is the subset of *nats.Conn the bus needs.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Target receives invalidations published by other processes.
type Target interface {
	Invalidate(resourceID string) int
	InvalidateAll()
}

// Message is the payload exchanged on the invalidation subject.
type Message struct {
	Origin    string   `json:"origin"`
	Resources []string `json:"resources,omitempty"`
	All       bool     `json:"all,omitempty"`
}

// Bus publishes local invalidations and applies remote ones. It implements
// wikijs.InvalidationBroadcaster.
type Bus struct {
	conn    Conn
	subject string
	origin  string
	logger  wikijs.Logger

	mu     sync.Mutex
	sub    *nats.Subscription
	owned  *nats.Conn
	closed bool
}

var _ wikijs.InvalidationBroadcaster = (*Bus)(nil)

// New creates a bus on an existing connection. An empty subject uses the
// default.
func New(conn Conn, subject string, logger wikijs.Logger) *Bus {
	if subject == "" {
		subject = constants.DefaultInvalidationSubject
	}

	if logger == nil {
		logger = wikijs.NopLogger{}
	}

	return &Bus{
		conn:    conn,
		subject: subject,
		origin:  nuid.Next(),
		logger:  logger,
	}
}

// Dial connects to NATS and returns a bus that owns the connection. The
// connection reconnects indefinitely.
func Dial(cfg *wikijs.InvalidationConfig, logger wikijs.Logger) (*Bus, error) {
	if logger == nil {
		logger = wikijs.NopLogger{}
	}

	url := cfg.NATSURL
	if url == "" {
		url = nats.DefaultURL
	}

	name := cfg.Name
	if name == "" {
		name = "wikijs-go"
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(constants.NATSReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", map[string]interface{}{"url": c.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	bus := New(conn, cfg.Subject, logger)
	bus.owned = conn

	return bus, nil
}

// Origin identifies this bus in published messages.
func (b *Bus) Origin() string {
	return b.origin
}

// Publish announces that resourceIDs changed.
func (b *Bus) Publish(ctx context.Context, resourceIDs []string) error {
	if len(resourceIDs) == 0 {
		return nil
	}

	return b.publish(ctx, Message{Origin: b.origin, Resources: resourceIDs})
}

// PublishAll asks every subscriber to drop its whole cache.
func (b *Bus) PublishAll(ctx context.Context) error {
	return b.publish(ctx, Message{Origin: b.origin, All: true})
}

func (b *Bus) publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding invalidation: %w", err)
	}

	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publishing invalidation on %s: %w", b.subject, err)
	}

	return nil
}

// Subscribe applies invalidations from other origins to target. Messages this
// bus published itself are ignored since the pipeline already applied them.
func (b *Bus) Subscribe(target Target) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	if b.sub != nil {
		return ErrAlreadySubscribed
	}

	sub, err := b.conn.Subscribe(b.subject, func(m *nats.Msg) {
		b.handle(target, m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.subject, err)
	}

	b.sub = sub

	return nil
}

func (b *Bus) handle(target Target, data []byte) {
	var msg Message

	if err := json.Unmarshal(data, &msg); err != nil {
		b.logger.Warn("Discarding malformed invalidation", map[string]interface{}{"error": err.Error()})

		return
	}

	if msg.Origin == b.origin {
		return
	}

	if msg.All {
		target.InvalidateAll()
		b.logger.Debug("Remote cache flush applied", map[string]interface{}{"origin": msg.Origin})

		return
	}

	removed := 0
	for _, id := range msg.Resources {
		removed += target.Invalidate(id)
	}

	b.logger.Debug("Remote invalidation applied", map[string]interface{}{
		"origin":    msg.Origin,
		"resources": msg.Resources,
		"removed":   removed,
	})
}

// Close unsubscribes and closes the connection if the bus dialled it.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	var err error

	if b.sub != nil {
		if unsubErr := b.sub.Unsubscribe(); unsubErr != nil && !errors.Is(unsubErr, nats.ErrConnectionClosed) {
			err = fmt.Errorf("unsubscribing from %s: %w", b.subject, unsubErr)
		}
	}

	if b.owned != nil {
		b.owned.Close()
	}

	return err
}
