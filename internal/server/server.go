// Package server carries the job protocol over a websocket. Each connection
// gets its own analysis and render workers and its own stale-result tracker.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/five82/seamloop/internal/analysis"
	"github.com/five82/seamloop/internal/config"
	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/jobs"
	"github.com/five82/seamloop/internal/protocol"
	"github.com/five82/seamloop/internal/seam"
)

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	maxMessageBytes = 1 << 20
)

// Server accepts websocket clients on /ws.
type Server struct {
	cfg      *config.Config
	engines  jobs.EngineFactory
	hook     jobs.Hook
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithEngines replaces the ffmpeg engine factory.
func WithEngines(f jobs.EngineFactory) Option {
	return func(s *Server) { s.engines = f }
}

// WithHook records job lifecycles, typically in a store.
func WithHook(h jobs.Hook) Option {
	return func(s *Server) { s.hook = h }
}

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for cfg.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: zerolog.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
			// Local tool; browsers load the client from file:// or a dev server.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "server").Logger()
	if s.engines == nil {
		s.engines = jobs.FFmpegEngines(s.logger, cfg.Threads)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.NewIOError("server failed", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.NewIOError("server shutdown failed", err)
		}
		return nil
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	sess := s.newSession(conn, r.URL.Query().Get("verbose") != "")
	defer sess.close()

	s.logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")
	sess.readLoop()
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("client disconnected")
}

// session is one client connection.
type session struct {
	srv     *Server
	conn    *websocket.Conn
	verbose bool
	tracker *protocol.Tracker
	logger  zerolog.Logger

	analysis *jobs.Worker
	render   *jobs.Worker

	writeMu sync.Mutex

	mu   sync.Mutex
	last *analysis.Result
}

func (s *Server) newSession(conn *websocket.Conn, verbose bool) *session {
	sess := &session{
		srv:     s,
		conn:    conn,
		verbose: verbose,
		tracker: protocol.NewTracker(),
		logger:  s.logger,
	}
	opts := []jobs.Option{jobs.WithLogger(s.logger), jobs.WithTracker(sess.tracker)}
	if s.hook != nil {
		opts = append(opts, jobs.WithHook(s.hook))
	}
	sess.analysis = jobs.NewWorker(protocol.KindAnalysis, s.engines, sess.deliver, opts...)
	sess.render = jobs.NewWorker(protocol.KindRender, s.engines, sess.deliver, opts...)
	return sess
}

func (c *session) close() {
	c.analysis.Close()
	c.render.Close()
	_ = c.conn.Close()
}

func (c *session) readLoop() {
	c.conn.SetReadLimit(maxMessageBytes)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handle(data)
	}
}

func (c *session) handle(data []byte) {
	req, err := protocol.DecodeRequest(data)
	if err != nil {
		c.reject(data, err)
		return
	}

	switch r := req.(type) {
	case protocol.AnalyzeRequest:
		if r.JobID == "" {
			r.JobID = protocol.NewJobID()
		}
		c.logf(protocol.KindAnalysis, r.JobID, "analyzing %s", r.VideoRef)
		if _, err := c.analysis.Submit(jobs.AnalysisJob(r, c.srv.cfg.Analysis, c.srv.logger)); err != nil {
			c.write(protocol.NewError(protocol.KindAnalysis, r.JobID, err))
		}
	case protocol.RenderRequest:
		if r.JobID == "" {
			r.JobID = protocol.NewJobID()
		}
		if err := c.inherit(&r); err != nil {
			c.write(protocol.NewError(protocol.KindRender, r.JobID, err))
			return
		}
		c.logf(protocol.KindRender, r.JobID, "rendering %s", r.VideoRef)
		defaults := seam.OptionsFromConfig(c.srv.cfg.Render)
		if _, err := c.render.Submit(jobs.RenderJob(r, defaults, c.srv.cfg.GetTempDir(), c.srv.logger)); err != nil {
			c.write(protocol.NewError(protocol.KindRender, r.JobID, err))
		}
	case protocol.CancelRequest:
		if r.Kind == protocol.KindRender {
			c.render.Cancel()
		} else {
			c.analysis.Cancel()
		}
	}
}

// inherit fills an unset candidate and resolution from the last analysis.
func (c *session) inherit(r *protocol.RenderRequest) error {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()

	if r.Plan.Candidate.EndMs <= 0 {
		best, ok := last.Best()
		if !ok {
			return errors.NewRenderConfigError("no candidate selected and no analysis result to choose from")
		}
		r.Plan.Candidate = best
	}
	if r.Plan.Resolution.IsZero() && last != nil {
		r.Plan.Resolution = seam.Resolution{
			Width:  last.VideoDimensions.Width,
			Height: last.VideoDimensions.Height,
		}
	}
	return nil
}

// deliver is the worker sink. Stale notifications stop here.
func (c *session) deliver(n protocol.Notification) {
	if !c.tracker.Accept(n) {
		c.logger.Debug().Str("job", n.JobID()).Msg("dropping stale notification")
		return
	}
	if m, ok := n.(protocol.AnalysisResult); ok {
		res := m.Result
		c.mu.Lock()
		c.last = &res
		c.mu.Unlock()
	}
	c.write(n)
}

// reject answers an undecodable request with a protocol error.
func (c *session) reject(data []byte, err error) {
	var env protocol.Envelope
	_ = json.Unmarshal(data, &env)
	kind := protocol.KindAnalysis
	if env.Type == protocol.TypeRender || env.Kind == protocol.KindRender {
		kind = protocol.KindRender
	}
	c.logger.Warn().Err(err).Msg("rejecting request")
	c.write(protocol.NewError(kind, env.JobID, err))
}

func (c *session) logf(kind protocol.JobKind, id, format string, args ...any) {
	if !c.verbose {
		return
	}
	c.write(protocol.Log{
		Header:  protocol.Header{ID: id, Kind: kind},
		Level:   "info",
		Message: fmt.Sprintf(format, args...),
	})
}

func (c *session) write(n protocol.Notification) {
	data, err := protocol.Encode(n)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode notification")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debug().Err(err).Msg("write failed")
	}
}
