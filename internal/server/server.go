package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/springd/internal/animator"
	"github.com/zeusync/springd/internal/core/observability/log"
	"github.com/zeusync/springd/pkg/generic"
)

// Server streams animator frames to websocket clients and applies the
// commands they send back.
type Server struct {
	config   Config
	animator *animator.Animator
	logger   log.Log

	upgrader websocket.Upgrader
	buffers  *generic.Pool[*bytes.Buffer]

	mu           sync.Mutex
	clients      map[*client]struct{}
	lastChecksum uint64
	broadcasted  bool

	running atomic.Bool
}

// Config holds server configuration
type Config struct {
	ListenAddr    string
	FrameInterval time.Duration
	WriteTimeout  time.Duration
	MaxClients    int
	// Presets are the named parameter sets clients may reference in "add".
	Presets map[string]animator.Params
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:    "127.0.0.1:8080",
		FrameInterval: time.Second / 60,
		WriteTimeout:  2 * time.Second,
		MaxClients:    256,
	}
}

func New(config Config, a *animator.Animator, logger log.Log) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	s := &Server{
		config:   config,
		animator: a,
		logger:   logger.With(log.String("component", "server")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		buffers: generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }).
			WithReset(func(b *bytes.Buffer) { b.Reset() }),
		clients: make(map[*client]struct{}),
	}
	return s
}

// Handler exposes /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server and the frame clock on ln until ctx is done
// or one of them fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		_ = ln.Close()
		return errors.New("server is already running")
	}
	defer s.running.Store(false)

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", log.String("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.animator.Run(ctx, s.config.FrameInterval, s.Broadcast)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.logger.Info("server stopped")
	return err
}

// Broadcast sends f to every client unless it is identical to the last
// frame sent.
func (s *Server) Broadcast(f animator.Frame) {
	s.mu.Lock()
	if s.broadcasted && s.lastChecksum == f.Checksum {
		s.mu.Unlock()
		return
	}
	s.lastChecksum, s.broadcasted = f.Checksum, true
	if len(s.clients) == 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	msg, err := s.encode(frameMessage(f))
	if err != nil {
		s.logger.Error("encode frame", log.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.logger.Debug("dropping frame for slow client",
				log.String("client", c.id),
				log.Uint64("frame", f.Seq),
			)
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

type health struct {
	Status  string `json:"status"`
	Springs int    `json:"springs"`
	Clients int    `json:"clients"`
	Frame   uint64 `json:"frame"`
	Settled bool   `json:"settled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	frame := s.animator.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{
		Status:  "ok",
		Springs: len(frame.Samples),
		Clients: s.ClientCount(),
		Frame:   frame.Seq,
		Settled: frame.Settled(),
	})
}

func (s *Server) encode(m message) ([]byte, error) {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(m); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.conn.Close()
	}
}
