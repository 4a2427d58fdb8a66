// Package bus connects carevox to a websocket hub that UIs subscribe to.
// Outbound messages announce results and navigation; inbound messages carry
// typed commands and listening toggles from the UI.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"carevox/internal/nlu"
)

const Name = "carevox"

const (
	KindAnnounce = "announce"
	KindNavigate = "navigate"
	KindState    = "state"
	KindCommand  = "command"
	KindListen   = "listen"
)

type Message struct {
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

var errClosed = errors.New("bus closed")

type Bus struct {
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New validates the hub URL. The connection is made on first use and
// re-made after failures.
func New(wsURL string, logger *slog.Logger) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse bus url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("bus url %q: scheme must be ws or wss", wsURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		url:    u.String(),
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		log:    logger,
	}, nil
}

func (b *Bus) connect(ctx context.Context) (*websocket.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errClosed
	}
	if b.conn != nil {
		return b.conn, nil
	}

	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}
	b.log.Info("Connected to bus", "url", b.url)
	b.conn = conn
	return conn, nil
}

func (b *Bus) drop(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == conn {
		b.conn.Close()
		b.conn = nil
	}
}

func (b *Bus) Write(m Message) error {
	conn, err := b.connect(context.Background())
	if err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	b.mu.Unlock()
	if err != nil {
		b.drop(conn)
		return fmt.Errorf("write bus: %w", err)
	}
	return nil
}

func (b *Bus) publish(kind, content string) {
	if err := b.Write(Message{From: Name, Kind: kind, Content: content}); err != nil {
		b.log.Warn("Failed to publish", "kind", kind, "err", err)
	}
}

// Announce is the visual and screen-reader sink.
func (b *Bus) Announce(text string) {
	b.publish(KindAnnounce, text)
}

func (b *Bus) Navigate(view nlu.View) {
	b.publish(KindNavigate, string(view))
}

func (b *Bus) State(listening bool) {
	state := "idle"
	if listening {
		state = "listening"
	}
	b.publish(KindState, state)
}

// Run reads inbound messages addressed to carevox (or to nobody) and passes
// them to handle until ctx is done, reconnecting with a fixed backoff.
func (b *Bus) Run(ctx context.Context, handle func(Message)) {
	const backoff = 2 * time.Second

	go func() {
		<-ctx.Done()
		b.Close()
	}()

	for ctx.Err() == nil {
		conn, err := b.connect(ctx)
		if errors.Is(err, errClosed) {
			return
		}
		if err != nil {
			b.log.Debug("Bus unavailable", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				switch {
				case ctx.Err() != nil:
				case isClosed(err):
					b.log.Warn("Bus closed the connection, reconnecting", "url", b.url)
				default:
					b.log.Warn("Bus read failed", "err", err)
				}
				b.drop(conn)
				break
			}
			var m Message
			if err := json.Unmarshal(data, &m); err != nil {
				b.log.Warn("Bad bus message", "err", err)
				continue
			}
			if m.From == Name || (m.To != "" && m.To != Name) {
				continue
			}
			handle(m)
		}
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
