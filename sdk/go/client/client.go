// Package client provides a websocket client SDK for springd.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/springd/internal/core/observability/log"
	"github.com/zeusync/springd/pkg/spring"
)

// Config holds configuration for the client
type Config struct {
	// URL is the websocket endpoint, e.g. ws://127.0.0.1:8080/ws.
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// FrameBuffer is how many frames are queued before the oldest is dropped.
	FrameBuffer int
	Logger      log.Log
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		URL:              "ws://127.0.0.1:8080/ws",
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     2 * time.Second,
		FrameBuffer:      64,
	}
}

// Sample is one spring's state within a frame.
type Sample struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Value       spring.Value `json:"value"`
	Destination spring.Value `json:"destination"`
	Settled     bool         `json:"settled"`
}

// Frame is the state of every spring after one server step.
type Frame struct {
	Seq      uint64   `json:"seq"`
	Samples  []Sample `json:"springs"`
	Checksum uint64   `json:"checksum"`
}

// Lookup returns the sample for a spring name or id.
func (f Frame) Lookup(ref string) (Sample, bool) {
	for _, s := range f.Samples {
		if s.Name == ref || s.ID == ref {
			return s, true
		}
	}
	return Sample{}, false
}

type command struct {
	Op        string        `json:"op"`
	Spring    string        `json:"spring,omitempty"`
	Name      string        `json:"name,omitempty"`
	Preset    string        `json:"preset,omitempty"`
	Value     *spring.Value `json:"value,omitempty"`
	Animate   *bool         `json:"animate,omitempty"`
	Stiffness *float64      `json:"stiffness,omitempty"`
	Dampening *float64      `json:"dampening,omitempty"`
}

type envelope struct {
	Type  string `json:"type"`
	Op    string `json:"op,omitempty"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
	Frame *Frame `json:"frame,omitempty"`
}

// Client is a connection to a springd server. Commands are serialized; the
// server answers them in order, interleaved with frames.
type Client struct {
	conn   *websocket.Conn
	config Config
	logger log.Log

	frames  chan Frame
	replies chan envelope

	requestMu sync.Mutex

	// replyMu guards owed and every send on replies. owed counts replies
	// still due for requests whose caller gave up waiting.
	replyMu sync.Mutex
	owed    int

	closed    atomic.Bool
	done      chan struct{}
	err       atomic.Value // error that ended the read loop
}

// Dial connects to the server described by config.
func Dial(ctx context.Context, config Config) (*Client, error) {
	if config.URL == "" {
		return nil, ErrInvalidConfig
	}
	defaults := DefaultClientConfig()
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = defaults.FrameBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.Logger == nil {
		config.Logger = log.Nop()
	}

	dialer := websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", config.URL, err)
	}

	c := &Client{
		conn:    conn,
		config:  config,
		logger:  config.Logger.With(log.String("component", "client")),
		frames:  make(chan Frame, config.FrameBuffer),
		replies: make(chan envelope, 1),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Frames delivers frames as they arrive. The channel is closed when the
// connection ends.
func (c *Client) Frames() <-chan Frame { return c.frames }

// Add creates a spring from a server-side preset and returns its id.
func (c *Client) Add(ctx context.Context, name, preset string, initial spring.Value) (string, error) {
	return c.request(ctx, command{Op: "add", Name: name, Preset: preset, Value: &initial})
}

// AddWithParams creates a spring with explicit parameters and returns its id.
func (c *Client) AddWithParams(ctx context.Context, name string, stiffness, dampening float64, initial spring.Value) (string, error) {
	return c.request(ctx, command{
		Op:        "add",
		Name:      name,
		Value:     &initial,
		Stiffness: &stiffness,
		Dampening: &dampening,
	})
}

// SetDestination retargets the spring named or identified by ref.
func (c *Client) SetDestination(ctx context.Context, ref string, v spring.Value, animate bool) error {
	_, err := c.request(ctx, command{Op: "set", Spring: ref, Value: &v, Animate: &animate})
	return err
}

func (c *Client) Retune(ctx context.Context, ref string, stiffness, dampening float64) error {
	_, err := c.request(ctx, command{Op: "retune", Spring: ref, Stiffness: &stiffness, Dampening: &dampening})
	return err
}

func (c *Client) Remove(ctx context.Context, ref string) error {
	_, err := c.request(ctx, command{Op: "remove", Spring: ref})
	return err
}

// Err returns the error that ended the connection, if it has ended.
func (c *Client) Err() error {
	if err, ok := c.err.Load().(error); ok {
		return err
	}
	return nil
}

// Close ends the connection. Further calls return nil.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.config.WriteTimeout))
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) request(ctx context.Context, cmd command) (string, error) {
	if c.closed.Load() {
		return "", ErrClientClosed
	}
	c.requestMu.Lock()
	defer c.requestMu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return "", fmt.Errorf("send %s: %w", cmd.Op, err)
	}

	select {
	case reply := <-c.replies:
		if reply.Type == "error" {
			return "", fmt.Errorf("%w: %s", ErrCommandRejected, reply.Error)
		}
		return reply.ID, nil
	case <-c.done:
		return "", ErrNotConnected
	case <-ctx.Done():
		c.abandon()
		return "", ctx.Err()
	}
}

// abandon accounts for the reply of a request nobody waits for anymore.
func (c *Client) abandon() {
	c.replyMu.Lock()
	defer c.replyMu.Unlock()
	select {
	case <-c.replies:
	default:
		c.owed++
	}
}

// deliverReply hands msg to the waiting request unless it answers an
// abandoned one.
func (c *Client) deliverReply(msg envelope) {
	c.replyMu.Lock()
	defer c.replyMu.Unlock()
	if c.owed > 0 {
		c.owed--
		return
	}
	select {
	case c.replies <- msg:
	default:
		c.logger.Warn("unsolicited reply", log.String("op", msg.Op))
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.frames)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.err.Store(err)
			if !c.closed.Load() {
				c.logger.Warn("connection lost", log.Error(err))
			}
			return
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("undecodable message", log.Error(err))
			continue
		}

		switch msg.Type {
		case "frame":
			if msg.Frame != nil {
				c.pushFrame(*msg.Frame)
			}
		case "ack", "error":
			c.deliverReply(msg)
		}
	}
}

// pushFrame queues f, discarding the oldest queued frame when full.
func (c *Client) pushFrame(f Frame) {
	for {
		select {
		case c.frames <- f:
			return
		default:
		}
		select {
		case <-c.frames:
		default:
		}
	}
}
