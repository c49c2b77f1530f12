// Package status serves a small read-only HTTP view of the referee: liveness,
// lobby counters and the live session registry.
package status

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/park285/cheese-arbiter/internal/obslog"
	"github.com/park285/cheese-arbiter/internal/registry"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Lobby is the subset of the matchmaker the status view reads.
type Lobby interface {
	Waiting() int
	Active() int
}

type QueueView struct {
	Waiting int `json:"waiting"`
	Active  int `json:"active"`
}

type Server struct {
	lobby Lobby
	store registry.Store
	srv   *fasthttp.Server
}

func New(lobby Lobby, store registry.Store) *Server {
	s := &Server{lobby: lobby, store: store}
	s.srv = &fasthttp.Server{
		Handler:      s.Handle,
		Name:         "cheese-arbiter",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handle routes a single request.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok")
	case "/queue":
		writeJSON(ctx, QueueView{Waiting: s.lobby.Waiting(), Active: s.lobby.Active()})
	case "/sessions":
		if s.store == nil {
			writeJSON(ctx, []*registry.SessionMeta{})
			return
		}
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		list, err := s.store.ListActive(rctx)
		if err != nil {
			obslog.L().Warn("status_sessions_error", zap.Error(err))
			ctx.Error("registry unavailable", fasthttp.StatusServiceUnavailable)
			return
		}
		writeJSON(ctx, list)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// Serve answers on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.ShutdownWithContext(sctx); err != nil {
			obslog.L().Warn("status_shutdown_error", zap.Error(err))
		}
	})
	defer stop()
	obslog.L().Info("status_listen", zap.String("addr", ln.Addr().String()))
	return s.srv.Serve(ln)
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
