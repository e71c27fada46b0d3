// Package events carries store change notifications over RabbitMQ for
// deployments where database NOTIFY is not reachable by every watcher.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/streadway/amqp"

	"github.com/sarmiento-reclamos/reclamos/internal/store"
)

// DefaultExchange is the fanout exchange changes are published to.
const DefaultExchange = "reclamos.changes"

// Channel is the subset of *amqp.Channel used by the publisher and subscriber.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Connection owns the AMQP connection the channels are opened on.
type Connection struct {
	conn *amqp.Connection
}

// Dial connects to the broker at url.
func Dial(url string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to RabbitMQ: %w", err)
	}
	return &Connection{conn: conn}, nil
}

// Channel opens a new channel on the connection.
func (c *Connection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	return ch, nil
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

func declareExchange(ch Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}
	return nil
}

// Publisher sends changes to the exchange as JSON.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
	now      func() time.Time
}

// NewPublisher declares exchange on ch and returns a publisher for it.
func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := declareExchange(ch, exchange); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}, nil
}

// Publish sends c. It fails if ctx is already done.
func (p *Publisher) Publish(ctx context.Context, c store.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling change: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		p.exchange, // exchange
		"",         // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publishing change: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// Subscriber consumes changes from a private queue bound to the exchange.
type Subscriber struct {
	ch       Channel
	exchange string
	log      log.Interface
}

// NewSubscriber declares exchange on ch. Each Subscribe call gets its own
// exclusive queue.
func NewSubscriber(ch Channel, exchange string, l log.Interface) (*Subscriber, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if l == nil {
		l = log.Log
	}
	if err := declareExchange(ch, exchange); err != nil {
		return nil, err
	}
	return &Subscriber{ch: ch, exchange: exchange, log: l}, nil
}

// Subscribe delivers decoded changes until ctx is done or the broker closes
// the delivery channel. Undecodable messages become OpResync.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan store.Change, error) {
	q, err := s.ch.QueueDeclare(
		"",    // name, broker generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declaring queue: %w", err)
	}
	if err := s.ch.QueueBind(q.Name, "", s.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("binding queue %s: %w", q.Name, err)
	}
	deliveries, err := s.ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("consuming %s: %w", q.Name, err)
	}

	out := make(chan store.Change, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				c, err := decodeDelivery(d)
				if err != nil {
					s.log.WithError(err).Warn("ignoring malformed change message")
					c = store.Change{Op: store.OpResync, At: time.Now()}
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Subscriber) Close() error {
	return s.ch.Close()
}

func decodeDelivery(d amqp.Delivery) (store.Change, error) {
	var c store.Change
	if err := json.Unmarshal(d.Body, &c); err != nil {
		return store.Change{}, fmt.Errorf("decoding change: %w", err)
	}
	if c.Op == "" {
		c.Op = store.OpResync
	}
	if c.At.IsZero() {
		c.At = d.Timestamp
	}
	return c, nil
}
