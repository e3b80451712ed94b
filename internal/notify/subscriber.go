package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/logging"
)

// DefaultReconnectDelay is the wait between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// Subscriber keeps a connection to the notification topic open and hands
// every event to its handler.
type Subscriber struct {
	url     string
	store   backend.KeyValueStore
	handler Handler
	dialer  *websocket.Dialer
	delay   time.Duration
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithReconnectDelay sets the wait between connection attempts.
func WithReconnectDelay(d time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) SubscriberOption {
	return func(s *Subscriber) { s.dialer = d }
}

// NewSubscriber returns a subscriber for the topic at url. The bearer token
// is read from store on every connection attempt.
func NewSubscriber(url string, store backend.KeyValueStore, h Handler, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:     url,
		store:   store,
		handler: h,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		delay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run connects and reads events until ctx is cancelled, reconnecting after
// every failure. It returns ctx's error.
func (s *Subscriber) Run(ctx context.Context) error {
	log := logging.FromContext(ctx).With("component", "notify.subscriber", "url", s.url)
	log.Info("notification subscriber started")

	for {
		err := s.listen(ctx)
		if ctx.Err() != nil {
			log.Info("notification subscriber stopped")
			return ctx.Err()
		}
		log.Warn("notification topic disconnected", "error", err, "retry_in", s.delay)

		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("notification subscriber stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// listen holds one connection until it fails or ctx ends.
func (s *Subscriber) listen(ctx context.Context) error {
	header := http.Header{}
	if token, ok := s.store.Get(backend.TokenKey); ok && token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial notification topic: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial notification topic: %w", err)
	}
	defer conn.Close()

	logging.FromContext(ctx).Debug("notification topic connected", "url", s.url)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("topic closed the connection")
			}
			return fmt.Errorf("read notification event: %w", err)
		}
		if ev.Type == EventHeartbeat {
			continue
		}
		s.handler.HandleEvent(ctx, ev)
	}
}
