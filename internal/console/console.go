// Package console serves a websocket script console. Connections only queue
// submissions; the host loop evaluates them with Drain, so scripts never run
// off the host thread.
package console

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/modbridge/internal/config"
	"github.com/zeusync/modbridge/internal/core/observability/log"
)

var ErrClosed = errors.New("console is closed")

// Evaluator runs one console submission.
type Evaluator interface {
	Eval(code string) (string, error)
}

// Submission is what a client sends.
type Submission struct {
	Code string `json:"code"`
}

// Reply is what a client gets back for each submission.
type Reply struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

type request struct {
	code  string
	reply chan Reply
}

type Server struct {
	cfg      config.Console
	logger   log.Log
	upgrader websocket.Upgrader
	requests chan *request

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	done   chan struct{}
	closed bool
}

func New(cfg config.Console, logger log.Log) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.With(log.String("component", "console")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		requests: make(chan *request, 16),
		conns:    make(map[*websocket.Conn]struct{}),
		done:     make(chan struct{}),
	}
}

// Handler serves the console endpoint at the configured path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	return mux
}

// Run listens until ctx is done, then shuts the listener down and closes
// every open console connection.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("console listening", log.String("addr", s.cfg.Addr), log.String("path", s.cfg.Path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Drain evaluates every queued submission without blocking and returns how
// many ran. Call it from the host loop.
func (s *Server) Drain(ev Evaluator) int {
	n := 0
	for {
		select {
		case req := <-s.requests:
			out, err := ev.Eval(req.code)
			rep := Reply{Output: out}
			if err != nil {
				rep.Error = err.Error()
			}
			req.reply <- rep
			n++
		default:
			return n
		}
	}
}

// Close refuses further submissions and drops open connections.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

// submit queues code for the host loop and waits for its reply.
func (s *Server) submit(ctx context.Context, code string) (Reply, error) {
	req := &request{code: code, reply: make(chan Reply, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return Reply{}, ErrClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep, nil
	case <-s.done:
		return Reply{}, ErrClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", log.Error(err))
		return
	}
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer func() {
		s.untrack(conn)
		_ = conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	s.logger.Info("console client connected", log.String("remote", remote))
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}

	for {
		var msg Submission
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("console read failed", log.String("remote", remote), log.Error(err))
			}
			return
		}
		rep, err := s.submit(r.Context(), msg.Code)
		if err != nil {
			return
		}
		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := conn.WriteJSON(rep); err != nil {
			s.logger.Debug("console write failed", log.String("remote", remote), log.Error(err))
			return
		}
	}
}
