package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc/panics"

	"crewmon/internal/frame"
)

// Status is the connection state.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

const (
	DefaultReconnectDelay    = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	writeTimeout             = 10 * time.Second
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("channel closed")

// Handler receives one decoded inbound frame.
type Handler func(frame.Frame)

// Options configures a Channel. Zero durations take the defaults; a negative
// HeartbeatInterval disables heartbeats.
type Options struct {
	URL               string
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
}

type handlerEntry struct {
	id  string
	seq uint64
	fn  Handler
}

// Channel is a websocket connection to the crew server that reconnects on
// its own after every drop.
type Channel struct {
	url               string
	dialer            *websocket.Dialer
	reconnectDelay    time.Duration
	heartbeatInterval time.Duration

	mu            sync.Mutex
	conn          *websocket.Conn
	stopBeat      chan struct{}
	status        Status
	lastHeartbeat time.Time
	reconnect     *time.Timer
	closed        bool

	writeMu sync.Mutex

	hmu      sync.RWMutex
	handlers []handlerEntry
	seq      uint64
	onStatus []func(Status)
	onNotice []func(Notice)
}

// New creates a disconnected channel. Call Connect to open it.
func New(opts Options) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Channel{
		url:               opts.URL,
		dialer:            &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		reconnectDelay:    opts.ReconnectDelay,
		heartbeatInterval: opts.HeartbeatInterval,
		status:            StatusDisconnected,
	}
}

// Connect opens the connection unless one is already open or being opened.
// A failed attempt schedules a reconnect like any other drop.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.status != StatusDisconnected {
		c.mu.Unlock()
		return nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.status = StatusConnecting
	c.mu.Unlock()
	c.emitStatus(StatusConnecting)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		log.Printf("[channel] dial %s: %v", c.url, err)
		c.mu.Lock()
		c.status = StatusDisconnected
		scheduled := c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.emitStatus(StatusDisconnected)
		if scheduled {
			c.emitNotice(NoticeError, fmt.Sprintf("connection failed, retrying in %s", c.reconnectDelay))
		}
		return fmt.Errorf("connect %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	stop := make(chan struct{})
	c.conn = conn
	c.stopBeat = stop
	c.status = StatusConnected
	c.mu.Unlock()

	log.Printf("[channel] connected to %s", c.url)
	c.emitStatus(StatusConnected)
	c.emitNotice(NoticeSuccess, "connected to crew server")

	go c.readLoop(conn)
	if c.heartbeatInterval > 0 {
		go c.heartbeatLoop(conn, stop)
	}
	return nil
}

// Send encodes payload as JSON and writes it. It fails without queuing when
// the connection is not open.
func (c *Channel) Send(payload any) bool {
	c.mu.Lock()
	conn := c.conn
	open := conn != nil && c.status == StatusConnected
	c.mu.Unlock()

	if !open {
		log.Printf("[channel] send while %s, dropping payload", c.Status())
		c.emitNotice(NoticeError, "not connected, message not sent")
		return false
	}
	if err := c.write(conn, payload); err != nil {
		log.Printf("[channel] send: %v", err)
		c.emitNotice(NoticeError, "failed to send message")
		return false
	}
	return true
}

// OnFrame registers fn under id. Handlers run in registration order;
// registering an existing id replaces that handler in place. The returned
// func unregisters it.
func (c *Channel) OnFrame(id string, fn Handler) (unregister func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()

	c.seq++
	entry := handlerEntry{id: id, seq: c.seq, fn: fn}
	replaced := false
	for i := range c.handlers {
		if c.handlers[i].id == id {
			c.handlers[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		c.handlers = append(c.handlers, entry)
	}

	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		for i, h := range c.handlers {
			if h.id == id && h.seq == entry.seq {
				c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
				return
			}
		}
	}
}

// OnStatus registers a callback for status transitions.
func (c *Channel) OnStatus(fn func(Status)) {
	c.hmu.Lock()
	c.onStatus = append(c.onStatus, fn)
	c.hmu.Unlock()
}

// OnNotice registers a callback for user-facing notices.
func (c *Channel) OnNotice(fn func(Notice)) {
	c.hmu.Lock()
	c.onNotice = append(c.onNotice, fn)
	c.hmu.Unlock()
}

// Status returns the current connection state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastHeartbeat returns when the last heartbeat_ack arrived.
func (c *Channel) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

// Close tears the channel down. A pending reconnect never fires and no
// further frames are dispatched.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	if c.stopBeat != nil {
		close(c.stopBeat)
		c.stopBeat = nil
	}
	wasOpen := c.status != StatusDisconnected
	c.status = StatusDisconnected
	c.mu.Unlock()

	if wasOpen {
		c.emitStatus(StatusDisconnected)
	}
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, err)
			return
		}
		c.process(raw)
	}
}

func (c *Channel) process(raw []byte) {
	f, err := frame.Decode(raw)
	if err != nil {
		log.Printf("[channel] dropping malformed frame: %v", err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if ack, ok := f.(frame.HeartbeatAck); ok {
		c.lastHeartbeat = ack.Time()
		if c.lastHeartbeat.IsZero() {
			c.lastHeartbeat = time.Now()
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.hmu.RLock()
	handlers := make([]handlerEntry, len(c.handlers))
	copy(handlers, c.handlers)
	c.hmu.RUnlock()

	for _, h := range handlers {
		var catcher panics.Catcher
		catcher.Try(func() { h.fn(f) })
		if r := catcher.Recovered(); r != nil {
			log.Printf("[channel] handler %q panicked on %s frame: %v", h.id, f.Type(), r.Value)
		}
	}
}

// dropped handles the end of conn. Stale connections are ignored so one
// close schedules exactly one reconnect.
func (c *Channel) dropped(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.stopBeat != nil {
		close(c.stopBeat)
		c.stopBeat = nil
	}
	c.status = StatusDisconnected
	scheduled := c.scheduleReconnectLocked()
	c.mu.Unlock()
	conn.Close()

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		log.Printf("[channel] connection error: %v", err)
	} else {
		log.Printf("[channel] connection closed: %v", err)
	}
	c.emitStatus(StatusDisconnected)
	if scheduled {
		c.emitNotice(NoticeWarning, fmt.Sprintf("connection lost, reconnecting in %s", c.reconnectDelay))
	}
}

// scheduleReconnectLocked arms the reconnect timer. The delay is fixed and
// attempts are unbounded.
func (c *Channel) scheduleReconnectLocked() bool {
	if c.closed || c.reconnect != nil {
		return false
	}
	c.reconnect = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnect = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if err := c.Connect(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			log.Printf("[channel] reconnect failed: %v", err)
		}
	})
	return true
}

func (c *Channel) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if err := c.write(conn, frame.Heartbeat(now)); err != nil {
				log.Printf("[channel] heartbeat: %v", err)
				return
			}
		}
	}
}

func (c *Channel) write(conn *websocket.Conn, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) emitStatus(s Status) {
	c.hmu.RLock()
	fns := append([]func(Status){}, c.onStatus...)
	c.hmu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (c *Channel) emitNotice(level NoticeLevel, text string) {
	c.hmu.RLock()
	fns := append([]func(Notice){}, c.onNotice...)
	c.hmu.RUnlock()
	n := Notice{Level: level, Text: text, At: time.Now()}
	for _, fn := range fns {
		fn(n)
	}
}
