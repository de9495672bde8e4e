// Package ws 基于 WebSocket 实现 push/pull 传输。
//
// bind 端在 host:port 上启动 HTTP 服务并升级连接，connect 端拨号
// ws://host:port/ 并在断线后按指数退避重连。每个帧是一条文本消息。
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"yqhp/taskqueue/internal/transport"
	"yqhp/taskqueue/pkg/logger"
)

const path = "/"

// Transport 是 WebSocket 传输。
type Transport struct {
	opts     transport.Options
	log      *zap.Logger
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
}

// New 创建 WebSocket 传输，log 为 nil 时使用全局日志。
func New(opts transport.Options, log *zap.Logger) *Transport {
	opts = opts.WithDefaults()
	if log == nil {
		log = logger.Named("transport.ws")
	}
	return &Transport{
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.DialTimeout,
		},
	}
}

// Kind 返回传输类型。
func (t *Transport) Kind() transport.Kind {
	return transport.KindWebSocket
}

// BindPull 监听 ep，接收所有已连接 push 端发送的帧。
func (t *Transport) BindPull(ctx context.Context, ep transport.Endpoint) (transport.Puller, error) {
	s := t.newSocket(ep, "bind-pull")
	if err := t.listen(s, s.readLoop); err != nil {
		return nil, err
	}
	return s, nil
}

// BindPush 监听 ep，把帧分发给已连接的 pull 端。
func (t *Transport) BindPush(ctx context.Context, ep transport.Endpoint) (transport.Pusher, error) {
	s := t.newSocket(ep, "bind-push")
	if err := t.listen(s, s.writeLoop); err != nil {
		return nil, err
	}
	return s, nil
}

// ConnectPull 在后台连接 ep 的 push 端点并立即返回。
func (t *Transport) ConnectPull(ctx context.Context, ep transport.Endpoint) (transport.Puller, error) {
	s := t.newSocket(ep, "connect-pull")
	go t.dialLoop(s, s.readLoop)
	return s, nil
}

// ConnectPush 在后台连接 ep 的 pull 端点并立即返回。
func (t *Transport) ConnectPush(ctx context.Context, ep transport.Endpoint) (transport.Pusher, error) {
	s := t.newSocket(ep, "connect-push")
	go t.dialLoop(s, s.writeLoop)
	return s, nil
}

// listen 同步绑定端口，绑定失败立即返回错误。
func (t *Transport) listen(s *socket, handle func(*websocket.Conn) error) error {
	addr := s.endpoint.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s", transport.ErrAddressInUse, addr)
		}
		return fmt.Errorf("监听 %s 失败: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug("upgrade failed", zap.Error(err))
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		defer s.untrack(conn)

		s.log.Debug("peer connected", zap.String("peer", r.RemoteAddr))
		err = handle(conn)
		s.log.Debug("peer disconnected", zap.String("peer", r.RemoteAddr), zap.Error(err))
	})

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: t.opts.DialTimeout,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve failed", zap.Error(err))
		}
	}()
	return nil
}

// dialLoop 持续连接直到套接字关闭。
func (t *Transport) dialLoop(s *socket, handle func(*websocket.Conn) error) {
	b := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	url := "ws://" + s.endpoint.Address() + path

	for {
		dialCtx, cancel := context.WithTimeout(s.ctx, t.opts.DialTimeout)
		conn, _, err := t.dialer.DialContext(dialCtx, url, nil)
		cancel()

		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			wait := b.Duration()
			s.log.Debug("dial failed, retrying", zap.Error(err), zap.Duration("wait", wait))
			select {
			case <-time.After(wait):
				continue
			case <-s.Closed():
				return
			}
		}

		b.Reset()
		if !s.track(conn) {
			conn.Close()
			return
		}
		err = handle(conn)
		s.untrack(conn)
		conn.Close()

		if s.IsClosed() {
			return
		}
		s.log.Debug("connection lost, reconnecting", zap.Error(err))
	}
}

// socket 同时实现 Puller 和 Pusher。
type socket struct {
	*transport.Queue

	endpoint transport.Endpoint
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	server *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func (t *Transport) newSocket(ep transport.Endpoint, mode string) *socket {
	ctx, cancel := context.WithCancel(context.Background())
	return &socket{
		Queue:    transport.NewQueue(t.opts),
		endpoint: ep,
		log:      t.log.With(zap.String("endpoint", ep.Address()), zap.String("mode", mode)),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

func (s *socket) Endpoint() transport.Endpoint {
	return s.endpoint
}

// Close 关闭监听和所有连接。可重复调用。
func (s *socket) Close() error {
	if !s.Shutdown() {
		return nil
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = nil
	s.mu.Unlock()

	s.cancel()
	if s.server != nil {
		_ = s.server.Close()
	}
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(100*time.Millisecond))
		_ = c.Close()
	}
	return nil
}

// track 登记连接，套接字已关闭时返回 false。
func (s *socket) track(c *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *socket) untrack(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns != nil {
		delete(s.conns, c)
	}
}

// readLoop 把连接上收到的帧放入收件箱。
func (s *socket) readLoop(conn *websocket.Conn) error {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if !s.Deliver(frame) {
			return transport.ErrClosed
		}
	}
}

// writeLoop 从发件箱取帧写到连接。多个连接竞争同一个发件箱，帧在连接间分摊。
func (s *socket) writeLoop(conn *websocket.Conn) error {
	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame := <-s.Outbox():
			err := conn.WriteMessage(websocket.TextMessage, frame)
			s.Written()
			if err != nil {
				s.log.Warn("frame dropped", zap.Error(err))
				return err
			}
		case <-peerGone:
			return errors.New("peer closed connection")
		case <-s.Closed():
			return transport.ErrClosed
		}
	}
}
