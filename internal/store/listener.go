package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/lib/pq"
)

// NotifyChannel is the channel the migration trigger notifies on.
const NotifyChannel = "water_reports_changes"

const (
	listenerMinReconnect = 2 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// notifyPayload is the JSON body sent by the water_reports trigger.
type notifyPayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

// decodeNotification converts a trigger payload. A nil notification is what
// pq delivers after a reconnect and maps to OpResync.
func decodeNotification(n *pq.Notification, at time.Time) (Change, error) {
	if n == nil {
		return Change{Op: OpResync, At: at}, nil
	}
	var p notifyPayload
	if err := json.Unmarshal([]byte(n.Extra), &p); err != nil {
		return Change{}, fmt.Errorf("decoding notification %q: %w", n.Extra, err)
	}
	c := Change{ID: p.ID, At: at}
	switch strings.ToLower(p.Op) {
	case "insert":
		c.Op = OpInsert
	case "update":
		c.Op = OpUpdate
	case "delete":
		c.Op = OpDelete
	default:
		c.Op = OpResync
	}
	return c, nil
}

// pump forwards notifications to out until ctx is done or notify closes.
// A ping keeps idle connections from being dropped silently.
func pump(ctx context.Context, notify <-chan *pq.Notification, ping func() error, out chan<- Change, l log.Interface) {
	defer close(out)
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			c, err := decodeNotification(n, time.Now())
			if err != nil {
				l.WithError(err).Warn("ignoring malformed change notification")
				c = Change{Op: OpResync, At: time.Now()}
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		case <-ticker.C:
			if ping != nil {
				if err := ping(); err != nil {
					l.WithError(err).Debug("listener ping failed")
				}
			}
		}
	}
}

func (s *PostgresStore) listenPQ(ctx context.Context) (<-chan Change, error) {
	logger := s.log.WithField("channel", NotifyChannel)
	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventDisconnected:
				logger.WithError(err).Warn("change listener disconnected")
			case pq.ListenerEventReconnected:
				logger.Info("change listener reconnected")
			case pq.ListenerEventConnectionAttemptFailed:
				logger.WithError(err).Debug("change listener connection attempt failed")
			}
		})
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listening on %s: %w", NotifyChannel, err)
	}

	out := make(chan Change, subscriberBuffer)
	go func() {
		defer listener.Close()
		pump(ctx, listener.Notify, listener.Ping, out, logger)
	}()
	return out, nil
}
