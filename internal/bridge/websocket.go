package bridge

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/system"
	"github.com/zeusync/hitsense/internal/core/systems"
)

const (
	EnginePath   = "/engine"
	FeedbackPath = "/feedback"
	StatusPath   = "/status"
	maxFrameSize = 1 << 20
)

// StatusSource reports the core state shown on the status endpoint.
type StatusSource interface {
	Status() system.Status
}

// Server exposes the engine and feedback websocket endpoints.
type Server struct {
	addr       string
	world      *World
	hub        *Hub
	engines    *broadcaster
	upgrader   websocket.Upgrader
	sendBuffer int
	status     StatusSource
	logger     log.Log
}

type ServerOption func(*Server)

// WithSendBuffer sets how many outbound messages a client may lag behind
// before it is disconnected.
func WithSendBuffer(n int) ServerOption {
	return func(s *Server) { s.sendBuffer = n }
}

func NewServer(addr string, world *World, hub *Hub, logger log.Log, opts ...ServerOption) *Server {
	s := &Server{
		addr:    addr,
		world:   world,
		hub:     hub,
		engines: newBroadcaster(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     allowAnyOrigin,
		},
		sendBuffer: defaultSendSize,
		logger:     logger.With(log.String("component", "bridge"), log.String("transport", "websocket")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// allowAnyOrigin accepts connections without a browser origin, which is how
// the engine plugin and local players connect.
func allowAnyOrigin(*http.Request) bool { return true }

// SetStatus attaches the core state reported on the status endpoint. It
// must be called before the server starts.
func (s *Server) SetStatus(src StatusSource) { s.status = src }

// Handler returns the HTTP handler serving the endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(EnginePath, s.handleEngine)
	mux.HandleFunc(StatusPath, s.handleStatus)
	if s.hub != nil {
		mux.HandleFunc(FeedbackPath, s.handleFeedback)
	}
	return mux
}

// Engines returns the number of connected engine sessions.
func (s *Server) Engines() int { return s.engines.len() }

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen for websocket clients")
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("websocket bridge listening", log.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "websocket bridge stopped")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.engines.closeAll()
		if s.hub != nil {
			s.hub.clients.closeAll()
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// BroadcastForces sends the current wrenches to every engine session.
func (s *Server) BroadcastForces(tick uint64) error {
	if s.engines.len() == 0 {
		return nil
	}
	data, err := json.Marshal(s.world.Forces(tick))
	if err != nil {
		return errors.Wrap(err, "encoding force frame")
	}
	for _, id := range s.engines.broadcast(data) {
		s.logger.Warn("engine session too slow, disconnected", log.String("session_id", id))
	}
	return nil
}

// FlushStage is the end-of-tick stage that pushes forces to the engine.
func (s *Server) FlushStage() systems.System {
	return systems.Func{
		ID:    "bridge.flush",
		Phase: systems.PhaseLateUpdate,
		Fn: func(_ context.Context, frame systems.Frame) error {
			return s.BroadcastForces(frame.Tick)
		},
	}
}

func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("engine upgrade failed", log.Error(err))
		return
	}
	p := newPeer(conn, s.sendBuffer)
	s.engines.add(p)
	go p.writePump()

	logger := s.logger.With(log.String("session_id", p.id), log.String("remote", conn.RemoteAddr().String()))
	logger.Info("engine connected")
	defer func() {
		s.engines.remove(p)
		logger.Info("engine disconnected")
	}()

	conn.SetReadLimit(maxFrameSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("engine read failed", log.Error(err))
			}
			return
		}
		ingest(s.world, logger, data)
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feedback upgrade failed", log.Error(err))
		return
	}
	p := newPeer(conn, s.sendBuffer)
	s.hub.clients.add(p)
	go p.writePump()
	s.logger.Info("feedback client connected", log.String("client_id", p.id))

	// feedback clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.clients.remove(p)
	s.logger.Info("feedback client disconnected", log.String("client_id", p.id))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	out := StatusFrame{
		EngineTick:        s.world.LastTick(),
		Engines:           s.engines.len(),
		PendingCollisions: s.world.Pending(),
		Contacts:          []ContactFrame{},
	}
	if s.hub != nil {
		out.FeedbackClients = s.hub.Clients()
	}
	if s.status != nil {
		st := s.status.Status()
		out.Ticks = st.Ticks
		out.Springs = st.Springs
		for _, p := range st.Contacts {
			out.Contacts = append(out.Contacts, ContactFrame{
				Body:   s.world.NameOf(p.Body),
				Parent: s.world.NameOf(p.Parent),
				State:  p.State.String(),
			})
		}
		sort.Slice(out.Contacts, func(i, j int) bool { return out.Contacts[i].Body < out.Contacts[j].Body })
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("status write failed", log.Error(err))
	}
}

// ingest applies one encoded frame. Bad frames are logged and skipped.
func ingest(w *World, logger log.Log, data []byte) {
	f, err := DecodeEngineFrame(data)
	if err != nil {
		logger.Warn("skipping malformed frame", log.Error(err))
		return
	}
	if err := w.Apply(f); err != nil {
		logger.Warn("frame partially applied", log.Uint64("tick", f.Tick), log.Error(err))
	}
}
