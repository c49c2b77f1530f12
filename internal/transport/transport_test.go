package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func TestLineConnReadWrite(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	c := NewLineConn(server)
	defer c.Close()

	go func() {
		_, _ = io.WriteString(client, "CHESS_V1_START\r\ne2 e4\nlast")
		_ = client.Close()
	}()

	for _, want := range []string{"CHESS_V1_START", "e2 e4", "last"} {
		got, err := c.ReadLine()
		if err != nil || got != want {
			t.Fatalf("ReadLine: got %q, %v want %q", got, err, want)
		}
	}
	if _, err := c.ReadLine(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestLineConnWriteAppendsNewline(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	c := NewLineConn(server)
	defer c.Close()

	done := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(client).ReadString('\n')
		done <- line
	}()
	if err := c.WriteLine("YOURTURN"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if got := <-done; got != "YOURTURN\n" {
		t.Fatalf("got %q", got)
	}
}

func TestLineConnReadDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	c := NewLineConn(server)
	defer c.Close()

	if err := c.SetReadDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, err := c.ReadLine()
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestServeTCPStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- ServeTCP(ctx, ln, func(c Conn) {
			line, _ := c.ReadLine()
			got <- line
			_ = c.Close()
		})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_, _ = io.WriteString(conn, "hello\n")
	select {
	case line := <-got:
		if line != "hello" {
			t.Fatalf("got %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler not invoked")
	}
	_ = conn.Close()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ServeTCP: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ServeTCP did not stop")
	}
}

func TestWebSocketConnEcho(t *testing.T) {
	srv := httptest.NewServer(WebSocketHandler(func(c Conn) {
		line, err := c.ReadLine()
		if err != nil {
			_ = c.Close()
			return
		}
		_ = c.WriteLine("echo:" + line)
		_ = c.Close()
	}, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.CloseNow()

	if err := client.Write(ctx, websocket.MessageText, []byte("CHESS_V1_START")); err != nil {
		t.Fatalf("write: %v", err)
	}
	typ, data, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.MessageText || string(data) != "echo:CHESS_V1_START" {
		t.Fatalf("unexpected frame %v %q", typ, data)
	}
}

func TestLineConnBoundsLongLine(t *testing.T) {
	server, client := net.Pipe()
	c := NewLineConn(server)
	defer c.Close()

	var written atomic.Int64
	chunk := []byte(strings.Repeat("x", 1024))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 8*1024; i++ {
			if _, err := client.Write(chunk); err != nil {
				return
			}
			written.Add(int64(len(chunk)))
		}
		_, _ = io.WriteString(client, "\n")
	}()

	if _, err := c.ReadLine(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
	if n := written.Load(); n > maxLineBytes {
		t.Fatalf("reader consumed %d bytes, cap is %d", n, maxLineBytes)
	}
	_ = client.Close()
	<-done
}

func TestWebSocketOriginCheck(t *testing.T) {
	handler := func(c Conn) { _ = c.Close() }
	dial := func(patterns []string) error {
		srv := httptest.NewServer(WebSocketHandler(handler, patterns))
		defer srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{"http://play.example.com"}},
		})
		if err == nil {
			c.CloseNow()
		}
		return err
	}

	if err := dial(nil); err == nil {
		t.Fatalf("cross-origin upgrade accepted without patterns")
	}
	if err := dial([]string{"*.example.com"}); err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
}
