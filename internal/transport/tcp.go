package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-arbiter/internal/obslog"
	"go.uber.org/zap"
)

type lineConn struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewLineConn wraps a stream connection.
func NewLineConn(c net.Conn) Conn {
	return &lineConn{conn: c, r: bufio.NewReaderSize(c, maxLineBytes)}
}

// ReadLine never buffers more than maxLineBytes; a longer line fails with
// ErrLineTooLong and leaves the stream unusable.
func (c *lineConn) ReadLine() (string, error) {
	b, err := c.r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", ErrLineTooLong
	}
	if err != nil {
		// a final unterminated line is still delivered; EOF follows on the next call
		if errors.Is(err, io.EOF) && len(b) > 0 {
			return strings.TrimRight(string(b), "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func (c *lineConn) WriteLine(line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *lineConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

func (c *lineConn) RemoteAddr() string {
	if a := c.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (c *lineConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

// ServeTCP accepts connections until ctx is cancelled and hands each one to h on
// its own goroutine.
func ServeTCP(ctx context.Context, ln net.Listener, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	obslog.L().Info("tcp_listen", zap.String("addr", ln.Addr().String()))
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				obslog.L().Warn("tcp_accept_retry", zap.Error(err))
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}
		go h(NewLineConn(c))
	}
}
