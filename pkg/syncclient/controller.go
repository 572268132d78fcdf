// Package syncclient is the consumer side of the relay: one Controller per
// mounted view and room key. It keeps a websocket open to the relay,
// reconnects with capped exponential backoff, and feeds invalidate and
// chat events into the caller's local caches. Correctness never depends on
// any single event arriving; a reconnect invalidates everything registered
// so the caller re-fetches from the authoritative API, and the Poller
// bounds staleness even with the socket down.
package syncclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/schwenzfeuer/wunschkiste-sub000/pkg/protocol"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// CacheInvalidator is the only thing the controller knows about the local
// cache: it can ask for a key to be discarded, never reads or writes entries.
type CacheInvalidator interface {
	Invalidate(key string)
}

type InvalidatorFunc func(key string)

func (f InvalidatorFunc) Invalidate(key string) { f(key) }

// Conn is the slice of *websocket.Conn the controller needs; tests swap in
// their own.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type DialFunc func(ctx context.Context, url string) (Conn, error)

type Config struct {
	// BaseURL is the relay's websocket base, e.g. wss://relay.example.com.
	BaseURL string
	// Key is the room key this session listens on.
	Key string
	// CacheKeys are invalidated on every invalidate event and on reconnect.
	CacheKeys []string
	// ChatCacheKey is additionally invalidated on reconnect only, because
	// chat messages that arrived while disconnected were missed for good.
	ChatCacheKey string
	Cache        CacheInvalidator
	// OnChat receives the verbatim message object of a chat_message event.
	OnChat func(message json.RawMessage)

	// BackoffMin/BackoffMax bound the reconnect delay (default 1s / 30s).
	BackoffMin time.Duration
	BackoffMax time.Duration
	// KeepaliveInterval paces the ping frames that keep intermediaries from
	// idling the connection out (default 30s).
	KeepaliveInterval time.Duration

	// Dial may be replaced in tests; defaults to the gorilla dialer.
	Dial   DialFunc
	Logger *slog.Logger
}

// Controller is the per-session reconnect state machine. All transitions
// happen on the run goroutine; Close may be called from anywhere, any
// state, at most once effective.
type Controller struct {
	cfg    Config
	wsURL  string
	ctx    context.Context
	cancel context.CancelFunc
	bo     *backoff.Backoff
	log    *slog.Logger

	mu           sync.Mutex
	state        State
	conn         Conn
	hasConnected bool

	done chan struct{}
}

func NewController(cfg Config) *Controller {
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = 30 * time.Second
	}
	if cfg.Dial == nil {
		cfg.Dial = func(ctx context.Context, rawURL string) (Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:    cfg,
		wsURL:  cfg.BaseURL + "/" + url.PathEscape(cfg.Key) + "/websocket",
		ctx:    ctx,
		cancel: cancel,
		bo: &backoff.Backoff{
			Min:    cfg.BackoffMin,
			Max:    cfg.BackoffMax,
			Factor: 2,
		},
		log:  cfg.Logger,
		done: make(chan struct{}),
	}
}

// Start launches the connect loop. Call once.
func (c *Controller) Start() {
	go c.run()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears the session down from any state, including mid-dial. After
// Close returns no timer fires again and no transition occurs.
func (c *Controller) Close() {
	c.cancel()
	c.mu.Lock()
	c.state = StateTornDown
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Done is closed when the run loop has fully exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		if !c.transition(StateConnecting) {
			return
		}
		conn, err := c.cfg.Dial(c.ctx, c.wsURL)
		if c.ctx.Err() != nil {
			// Torn down while dialing; a late success must not resurrect us.
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			c.log.Debug("syncclient - run - dial failed", "key", c.cfg.Key, "err", err)
			if !c.transition(StateDisconnected) || !c.sleep(c.bo.Duration()) {
				return
			}
			continue
		}

		if !c.attach(conn) {
			_ = conn.Close()
			return
		}
		c.onConnected()
		stopKeepalive := c.startKeepalive(conn)
		c.readLoop(conn)
		stopKeepalive()
		c.detach(conn)

		if !c.transition(StateDisconnected) || !c.sleep(c.bo.Duration()) {
			return
		}
	}
}

// transition moves to next unless the session is torn down; reports success.
func (c *Controller) transition(next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTornDown {
		return false
	}
	c.state = next
	return true
}

func (c *Controller) attach(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTornDown {
		return false
	}
	c.state = StateConnected
	c.conn = conn
	return true
}

func (c *Controller) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// onConnected resets the backoff to its floor and, on anything but the
// first connect of this session, invalidates every registered cache key
// plus the chat key: events that happened while disconnected are gone and
// only a full re-fetch recovers them.
func (c *Controller) onConnected() {
	c.bo.Reset()
	c.mu.Lock()
	reconnect := c.hasConnected
	c.hasConnected = true
	c.mu.Unlock()
	if !reconnect {
		c.log.Debug("syncclient - on connected - connected", "key", c.cfg.Key)
		return
	}
	c.log.Debug("syncclient - on connected - reconnected, recovering missed state", "key", c.cfg.Key)
	c.invalidateAll()
	if c.cfg.Cache != nil && c.cfg.ChatCacheKey != "" {
		c.cfg.Cache.Invalidate(c.cfg.ChatCacheKey)
	}
}

func (c *Controller) invalidateAll() {
	if c.cfg.Cache == nil {
		return
	}
	for _, key := range c.cfg.CacheKeys {
		c.cfg.Cache.Invalidate(key)
	}
}

func (c *Controller) startKeepalive(conn Conn) func() {
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(c.cfg.KeepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				// A failed ping is not handled here; the read loop sees
				// the dead connection and drives the reconnect.
				_ = conn.WriteMessage(websocket.TextMessage, protocol.PingFrame)
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

// readLoop consumes events until the connection dies. The socket is
// receive-only for the application: nothing but keepalive pings ever flows
// the other way.
func (c *Controller) readLoop(conn Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.log.Debug("syncclient - read loop - connection lost", "key", c.cfg.Key, "err", err)
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Controller) handleMessage(raw []byte) {
	ev, err := protocol.Decode(raw)
	if err != nil {
		// Non-JSON control traffic such as a bare pong. Ignore.
		return
	}
	switch ev.Type {
	case protocol.TypeInvalidate:
		c.invalidateAll()
	case protocol.TypeChatMessage:
		if c.cfg.OnChat != nil {
			c.cfg.OnChat(ev.Data)
		}
	}
}

func (c *Controller) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}
