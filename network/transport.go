package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/automoto/lockstep/shared/protocol"
	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	readChunkSize  = 4096
	chunkBacklog   = 256
	acceptBacklog  = 16
	wsReadLimit    = 1 << 20
	schemeWS       = "ws://"
	schemeWSSecure = "wss://"
)

// stream owns one peer connection. A reader goroutine forwards raw chunks
// on a channel; the session goroutine drains it without blocking through
// TryRecv.
type stream struct {
	conn   net.Conn
	chunks chan []byte
	closed chan struct{}
	once   sync.Once
}

func newStream(conn net.Conn) *stream {
	s := &stream{
		conn:   conn,
		chunks: make(chan []byte, chunkBacklog),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *stream) readLoop() {
	defer close(s.chunks)
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.closed:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// TryRecv implements protocol.ChunkSource.
func (s *stream) TryRecv() ([]byte, bool) {
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			return nil, false
		}
		return chunk, true
	default:
		return nil, true
	}
}

func (s *stream) Send(p *protocol.SendPacket) error {
	return p.Send(s.conn)
}

func (s *stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

func (s *stream) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// Listener hands accepted connections to the host without blocking it.
type Listener interface {
	// TryAccept returns a pending connection, if any.
	TryAccept() (net.Conn, bool)
	Addr() net.Addr
	Close() error
}

type acceptQueue struct {
	pending chan net.Conn
	done    chan struct{}
	once    sync.Once
}

func newAcceptQueue() *acceptQueue {
	return &acceptQueue{
		pending: make(chan net.Conn, acceptBacklog),
		done:    make(chan struct{}),
	}
}

func (q *acceptQueue) push(conn net.Conn) {
	select {
	case q.pending <- conn:
	case <-q.done:
		_ = conn.Close()
	}
}

func (q *acceptQueue) TryAccept() (net.Conn, bool) {
	select {
	case conn := <-q.pending:
		return conn, true
	default:
		return nil, false
	}
}

func (q *acceptQueue) shutdown() {
	q.once.Do(func() { close(q.done) })
}

// TCPListener accepts plain TCP peers.
type TCPListener struct {
	*acceptQueue
	ln net.Listener
}

// ListenTCP starts accepting on addr in a background goroutine.
func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	l := &TCPListener{acceptQueue: newAcceptQueue(), ln: ln}
	go l.acceptLoop()
	return l, nil
}

func (l *TCPListener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logrus.WithError(err).Warn("tcp accept stopped")
			}
			return
		}
		l.push(conn)
	}
}

func (l *TCPListener) Addr() net.Addr { return l.ln.Addr() }

func (l *TCPListener) Close() error {
	l.shutdown()
	return l.ln.Close()
}

// WebSocketListener accepts peers that speak the same framing over binary
// WebSocket messages.
type WebSocketListener struct {
	*acceptQueue
	ln  net.Listener
	srv *http.Server
}

// ListenWebSocket serves WebSocket upgrades on addr.
func ListenWebSocket(addr string) (*WebSocketListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	l := &WebSocketListener{acceptQueue: newAcceptQueue(), ln: ln}
	l.srv = &http.Server{Handler: http.HandlerFunc(l.upgrade)}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Warn("websocket server stopped")
		}
	}()
	return l, nil
}

func (l *WebSocketListener) upgrade(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logrus.WithError(err).Debug("websocket upgrade failed")
		return
	}
	c.SetReadLimit(wsReadLimit)
	l.push(websocket.NetConn(context.Background(), c, websocket.MessageBinary))
}

func (l *WebSocketListener) Addr() net.Addr { return l.ln.Addr() }

func (l *WebSocketListener) Close() error {
	l.shutdown()
	return l.srv.Close()
}

// Dial connects to a host. Addresses with a ws:// or wss:// scheme go
// through WebSocket; anything else is treated as host:port over TCP.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	if strings.HasPrefix(addr, schemeWS) || strings.HasPrefix(addr, schemeWSSecure) {
		c, _, err := websocket.Dial(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("websocket dial %s: %w", addr, err)
		}
		c.SetReadLimit(wsReadLimit)
		return websocket.NetConn(context.Background(), c, websocket.MessageBinary), nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
