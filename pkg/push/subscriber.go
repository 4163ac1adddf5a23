package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// ErrGaveUp is returned by Run once reconnect attempts are exhausted.
var ErrGaveUp = errors.New("push channel: reconnect attempts exhausted")

// Subscriber holds one push-channel connection open and delivers decoded
// events, in arrival order, on Events. It reconnects after a dropped link up
// to maxReconnects consecutive failures.
type Subscriber struct {
	url           string
	dialer        *websocket.Dialer
	maxReconnects int
	backoff       *backoff.Backoff
	events        chan Event
}

type Option func(*Subscriber)

// WithBackoff overrides the reconnect delay bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(s *Subscriber) {
		s.backoff = &backoff.Backoff{Min: min, Max: max, Factor: 2, Jitter: true}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Subscriber) { s.dialer = d }
}

func NewSubscriber(url string, maxReconnects int, opts ...Option) *Subscriber {
	s := &Subscriber{
		url:           url,
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		maxReconnects: maxReconnects,
		backoff:       &backoff.Backoff{Min: 500 * time.Millisecond, Max: 10 * time.Second, Factor: 2, Jitter: true},
		events:        make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events is closed when Run returns.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Run connects and pumps events until ctx is cancelled (teardown) or the
// reconnect budget is spent.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.events)

	failures := 0
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures > s.maxReconnects {
				log.Error().Err(err).Int("attempts", failures).Str("url", s.url).Msg("push channel unreachable")
				return fmt.Errorf("%w: %v", ErrGaveUp, err)
			}
			wait := s.backoff.Duration()
			log.Warn().Err(err).Int("attempt", failures).Dur("retry_in", wait).Msg("push channel connect failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		failures = 0
		s.backoff.Reset()
		log.Info().Str("url", s.url).Msg("connected to backend")
		if !s.emit(ctx, Event{Kind: Connected}) {
			conn.Close()
			return ctx.Err()
		}

		err = s.pump(ctx, conn)
		if ctx.Err() != nil {
			s.tryEmit(Event{Kind: Disconnected})
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("disconnected from backend")
		if !s.emit(ctx, Event{Kind: Disconnected, Err: err}) {
			return ctx.Err()
		}
	}
}

// pump reads frames until the link fails or ctx is cancelled.
func (s *Subscriber) pump(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, ok, err := decode(frame)
		if err != nil {
			log.Warn().Err(err).Msg("malformed push message")
			continue
		}
		if !ok {
			log.Debug().Bytes("frame", frame).Msg("ignoring unknown push event")
			continue
		}
		if !s.emit(ctx, ev) {
			return ctx.Err()
		}
	}
}

func (s *Subscriber) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Subscriber) tryEmit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
