package events

import (
	"context"
	"time"

	"github.com/apex/log"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/store"
)

// PublishingStore wraps a Store so that successful writes are announced on
// the exchange. A failed publish is logged; the write itself stands.
type PublishingStore struct {
	store.Store
	pub *Publisher
	sub *Subscriber
	log log.Interface
	now func() time.Time
}

// NewPublishingStore decorates s. When sub is nil, Subscribe falls through
// to the wrapped store.
func NewPublishingStore(s store.Store, pub *Publisher, sub *Subscriber, l log.Interface) *PublishingStore {
	if l == nil {
		l = log.Log
	}
	return &PublishingStore{Store: s, pub: pub, sub: sub, log: l, now: time.Now}
}

func (p *PublishingStore) Create(ctx context.Context, r model.Report) (model.Report, error) {
	created, err := p.Store.Create(ctx, r)
	if err != nil {
		return created, err
	}
	p.publish(ctx, store.OpInsert, created.ID)
	return created, nil
}

func (p *PublishingStore) Update(ctx context.Context, id string, patch model.Patch) error {
	if err := p.Store.Update(ctx, id, patch); err != nil {
		return err
	}
	p.publish(ctx, store.OpUpdate, id)
	return nil
}

func (p *PublishingStore) Delete(ctx context.Context, id string) error {
	if err := p.Store.Delete(ctx, id); err != nil {
		return err
	}
	p.publish(ctx, store.OpDelete, id)
	return nil
}

func (p *PublishingStore) Subscribe(ctx context.Context) (<-chan store.Change, error) {
	if p.sub == nil {
		return p.Store.Subscribe(ctx)
	}
	return p.sub.Subscribe(ctx)
}

// Close closes the AMQP channels, then the wrapped store.
func (p *PublishingStore) Close() error {
	if p.pub != nil {
		if err := p.pub.Close(); err != nil {
			p.log.WithError(err).Warn("closing publisher channel")
		}
	}
	if p.sub != nil {
		if err := p.sub.Close(); err != nil {
			p.log.WithError(err).Warn("closing subscriber channel")
		}
	}
	return p.Store.Close()
}

func (p *PublishingStore) publish(ctx context.Context, op store.Op, id string) {
	if p.pub == nil {
		return
	}
	c := store.Change{Op: op, ID: id, At: p.now()}
	if err := p.pub.Publish(ctx, c); err != nil {
		p.log.WithError(err).WithField("id", id).WithField("op", string(op)).Warn("change not published")
	}
}
