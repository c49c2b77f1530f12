package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-arbiter/internal/obslog"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// wsConn carries one protocol line per text frame.
type wsConn struct {
	c      *websocket.Conn
	remote string

	dlMu     sync.Mutex
	deadline time.Time

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(c *websocket.Conn, remote string) *wsConn {
	c.SetReadLimit(maxLineBytes)
	return &wsConn{c: c, remote: remote, closed: make(chan struct{})}
}

func (w *wsConn) ReadLine() (string, error) {
	ctx := context.Background()
	w.dlMu.Lock()
	dl := w.deadline
	w.dlMu.Unlock()
	if !dl.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, dl)
		defer cancel()
	}
	typ, data, err := w.c.Read(ctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", ErrBinaryFrame
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (w *wsConn) WriteLine(line string) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return w.c.Write(ctx, websocket.MessageText, []byte(line))
}

func (w *wsConn) SetReadDeadline(t time.Time) error {
	w.dlMu.Lock()
	w.deadline = t
	w.dlMu.Unlock()
	return nil
}

func (w *wsConn) RemoteAddr() string { return w.remote }

func (w *wsConn) Close() error {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.closeErr = w.c.Close(websocket.StatusNormalClosure, "")
	})
	return w.closeErr
}

// WebSocketHandler upgrades requests and hands the connection to h. The HTTP
// handler stays parked until the connection is closed by its owner.
// Browser origins other than the request host must match originPatterns
// (host globs such as "*.example.com"); clients sending no Origin are allowed.
func WebSocketHandler(h Handler, originPatterns []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}
		wc := newWSConn(c, r.RemoteAddr)
		h(wc)
		<-wc.closed
	})
}

// ServeWebSocket serves WebSocket players on addr under /play until ctx ends.
func ServeWebSocket(ctx context.Context, addr string, originPatterns []string, h Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/play", WebSocketHandler(h, originPatterns))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	defer stop()

	obslog.L().Info("ws_listen", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
