package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/springd/internal/animator"
	"github.com/zeusync/springd/internal/core/observability/log"
	"github.com/zeusync/springd/pkg/spring"
)

const (
	sendBuffer     = 32
	maxMessageSize = 64 * 1024
)

// Command is a client request. Spring is either a spring name or its id.
type Command struct {
	Op        string        `json:"op"`
	Spring    string        `json:"spring,omitempty"`
	Name      string        `json:"name,omitempty"`
	Preset    string        `json:"preset,omitempty"`
	Value     *spring.Value `json:"value,omitempty"`
	Animate   *bool         `json:"animate,omitempty"`
	Stiffness *float64      `json:"stiffness,omitempty"`
	Dampening *float64      `json:"dampening,omitempty"`
	Precision float64       `json:"precision,omitempty"`
}

// message is everything the server writes to a client.
type message struct {
	Type  string          `json:"type"`
	Op    string          `json:"op,omitempty"`
	ID    string          `json:"id,omitempty"`
	Error string          `json:"error,omitempty"`
	Frame *animator.Frame `json:"frame,omitempty"`
}

func frameMessage(f animator.Frame) message { return message{Type: "frame", Frame: &f} }

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxClients > 0 && s.ClientCount() >= s.config.MaxClients {
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	s.register(c)
	defer s.unregister(c)

	go s.writeLoop(c)

	if msg, err := s.encode(frameMessage(s.animator.Snapshot())); err == nil {
		s.deliver(c, msg)
	}
	s.readLoop(c)
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("client connected",
		log.String("client", c.id),
		log.String("remote", c.conn.RemoteAddr().String()),
		log.Int("clients", n),
	)
}

// unregister removes c before closing its queue so Broadcast never sends
// on a closed channel.
func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if !ok {
		return
	}
	c.closeOnce.Do(func() { close(c.send) })
	s.logger.Info("client disconnected", log.String("client", c.id))
}

// deliver queues msg for c if it is still registered and has room.
func (s *Server) deliver(c *client, msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Debug("write failed", log.String("client", c.id), log.Error(err))
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(s.config.WriteTimeout))
}

func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read failed", log.String("client", c.id), log.Error(err))
			}
			return
		}

		var cmd Command
		reply := message{Type: "ack"}
		if err := json.Unmarshal(data, &cmd); err != nil {
			reply = message{Type: "error", Error: fmt.Sprintf("decode command: %v", err)}
		} else {
			reply.Op = cmd.Op
			id, err := s.apply(cmd)
			if err != nil {
				reply.Type, reply.Error = "error", err.Error()
				s.logger.Debug("command rejected",
					log.String("client", c.id),
					log.String("op", cmd.Op),
					log.Error(err),
				)
			} else {
				reply.ID = id.String()
			}
		}

		msg, err := s.encode(reply)
		if err != nil {
			s.logger.Error("encode reply", log.Error(err))
			continue
		}
		s.deliver(c, msg)
	}
}

// apply executes cmd against the animator and returns the affected spring.
func (s *Server) apply(cmd Command) (animator.ID, error) {
	switch cmd.Op {
	case "add":
		if cmd.Value == nil {
			return uuid.Nil, fmt.Errorf("%w: value", ErrMissingField)
		}
		params, err := s.params(cmd)
		if err != nil {
			return uuid.Nil, err
		}
		return s.animator.Add(cmd.Name, params, *cmd.Value)

	case "set":
		if cmd.Value == nil {
			return uuid.Nil, fmt.Errorf("%w: value", ErrMissingField)
		}
		id, err := s.animator.Resolve(cmd.Spring)
		if err != nil {
			return uuid.Nil, err
		}
		animate := cmd.Animate == nil || *cmd.Animate
		return id, s.animator.SetDestination(id, *cmd.Value, animate)

	case "retune":
		if cmd.Stiffness == nil || cmd.Dampening == nil {
			return uuid.Nil, fmt.Errorf("%w: stiffness and dampening", ErrMissingField)
		}
		id, err := s.animator.Resolve(cmd.Spring)
		if err != nil {
			return uuid.Nil, err
		}
		return id, s.animator.Retune(id, *cmd.Stiffness, *cmd.Dampening)

	case "remove":
		id, err := s.animator.Resolve(cmd.Spring)
		if err != nil {
			return uuid.Nil, err
		}
		return id, s.animator.Remove(id)

	default:
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	}
}

func (s *Server) params(cmd Command) (animator.Params, error) {
	if cmd.Preset != "" {
		p, ok := s.config.Presets[cmd.Preset]
		if !ok {
			return animator.Params{}, fmt.Errorf("%w: %q", ErrUnknownPreset, cmd.Preset)
		}
		return p, nil
	}
	if cmd.Stiffness == nil || cmd.Dampening == nil {
		return animator.Params{}, fmt.Errorf("%w: preset or stiffness and dampening", ErrMissingField)
	}
	return animator.Params{
		Stiffness: *cmd.Stiffness,
		Dampening: *cmd.Dampening,
		Precision: cmd.Precision,
	}, nil
}
