package exchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"cyclescan/internal/model"
)

const (
	minBackoff = time.Second
	maxBackoff = 16 * time.Second
)

// stream describes one websocket feed: where to dial, what to send after
// connecting, and how to turn a message into ticks.
type stream struct {
	name      string
	url       string
	logger    *slog.Logger
	subscribe func(c *websocket.Conn) error
	decode    func(message []byte) ([]model.PriceTick, error)
}

// run keeps the stream connected until ctx is cancelled, reconnecting with
// exponential backoff.
func (s *stream) run(ctx context.Context, out chan<- model.PriceTick) error {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			s.logger.Info(s.name + ": context cancelled, shutting down")
			return nil
		}

		s.logger.Info(s.name+": connecting to WebSocket", "url", s.url, "backoff", backoff)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.logger.Error(s.name+": WebSocket connection failed", "error", err)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if s.subscribe != nil {
			if err := s.subscribe(c); err != nil {
				s.logger.Error(s.name+": failed to send subscription", "error", err)
				c.Close()
				if !sleep(ctx, backoff) {
					return nil
				}
				backoff = nextBackoff(backoff)
				continue
			}
		}

		s.logger.Info(s.name + ": connected successfully")

		received, err := s.read(ctx, c, out)
		c.Close()
		if ctx.Err() != nil {
			s.logger.Info(s.name + ": context cancelled, closing connection")
			return nil
		}
		// A connection that delivered data earns a fresh backoff; one dropped
		// before its first message keeps escalating.
		if received {
			backoff = minBackoff
		}
		s.logger.Error(s.name+": failed to read message", "error", err, "backoff", backoff)
		if !sleep(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff)
	}
}

// read pumps messages until the connection fails. received reports whether
// at least one message arrived.
func (s *stream) read(ctx context.Context, c *websocket.Conn, out chan<- model.PriceTick) (received bool, err error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			return received, err
		}
		received = true
		ticks, err := s.decode(message)
		if err != nil {
			s.logger.Warn(s.name+": failed to parse message", "error", err)
			continue
		}
		for _, tick := range ticks {
			select {
			case out <- tick:
				s.logger.Debug(s.name+": sent price tick", "symbol", tick.Symbol.String(), "bid", tick.Bid, "ask", tick.Ask)
			case <-ctx.Done():
				return received, ctx.Err()
			}
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
