// Package rpc 基于 gRPC 流实现 push/pull 传输。
//
// bind 端在 host:port 上运行 gRPC 服务。connect push 端打开 Push 流持续发送帧，
// connect pull 端打开 Pull 流持续接收帧。流断开后按指数退避重建。
package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpcbackoff "google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"yqhp/taskqueue/internal/transport"
	"yqhp/taskqueue/pkg/logger"
)

const serviceName = "taskqueue.transport.Pipe"

// closeGrace 是关闭 connect 端时等待流结束的最长时间。
const closeGrace = time.Second

const (
	pushMethod = "/" + serviceName + "/Push"
	pullMethod = "/" + serviceName + "/Pull"
)

// pipeServer 由 bind 端实现。
type pipeServer interface {
	Push(stream grpc.ServerStream) error
	Pull(stream grpc.ServerStream) error
}

var pipeDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*pipeServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Push",
			Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(pipeServer).Push(stream) },
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "Pull",
			Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(pipeServer).Pull(stream) },
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// Transport 是 gRPC 传输。
type Transport struct {
	opts transport.Options
	log  *zap.Logger
}

// New 创建 gRPC 传输，log 为 nil 时使用全局日志。
func New(opts transport.Options, log *zap.Logger) *Transport {
	if log == nil {
		log = logger.Named("transport.grpc")
	}
	return &Transport{opts: opts.WithDefaults(), log: log}
}

// Kind 返回传输类型。
func (t *Transport) Kind() transport.Kind {
	return transport.KindGRPC
}

// BindPull 在 ep 上接受 Push 流。
func (t *Transport) BindPull(ctx context.Context, ep transport.Endpoint) (transport.Puller, error) {
	s := t.newSocket(ep, "bind-pull")
	if err := t.serve(s, boundPull{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// BindPush 在 ep 上接受 Pull 流。
func (t *Transport) BindPush(ctx context.Context, ep transport.Endpoint) (transport.Pusher, error) {
	s := t.newSocket(ep, "bind-push")
	if err := t.serve(s, boundPush{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// ConnectPull 在后台打开 Pull 流并立即返回。
func (t *Transport) ConnectPull(ctx context.Context, ep transport.Endpoint) (transport.Puller, error) {
	s := t.newSocket(ep, "connect-pull")
	if err := t.dial(s); err != nil {
		return nil, err
	}
	go t.streamLoop(s, pullMethod, s.pullStream)
	return s, nil
}

// ConnectPush 在后台打开 Push 流并立即返回。
func (t *Transport) ConnectPush(ctx context.Context, ep transport.Endpoint) (transport.Pusher, error) {
	s := t.newSocket(ep, "connect-push")
	s.drain = true
	if err := t.dial(s); err != nil {
		return nil, err
	}
	go t.streamLoop(s, pushMethod, s.pushStream)
	return s, nil
}

func (t *Transport) serve(s *socket, srv pipeServer) error {
	addr := s.endpoint.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s", transport.ErrAddressInUse, addr)
		}
		return fmt.Errorf("监听 %s 失败: %w", addr, err)
	}

	s.server = grpc.NewServer(grpc.ForceServerCodec(rawCodec{}))
	s.server.RegisterService(&pipeDesc, srv)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.log.Error("serve failed", zap.Error(err))
		}
	}()
	return nil
}

func (t *Transport) dial(s *socket) error {
	conn, err := grpc.NewClient(s.endpoint.Address(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: grpcbackoff.Config{
				BaseDelay:  50 * time.Millisecond,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   5 * time.Second,
			},
			MinConnectTimeout: t.opts.DialTimeout,
		}),
	)
	if err != nil {
		return fmt.Errorf("连接 %s 失败: %w", s.endpoint, err)
	}
	s.conn = conn
	return nil
}

// streamLoop 反复打开流并交给 handle，直到套接字关闭。
func (t *Transport) streamLoop(s *socket, method string, handle func(grpc.ClientStream) error) {
	defer close(s.loopDone)

	b := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	desc := &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}

	for {
		ctx, cancel := context.WithCancel(s.ctx)
		stream, err := s.conn.NewStream(ctx, desc, method)
		if err == nil {
			err = handle(stream)
		}
		cancel()

		if s.IsClosed() {
			return
		}
		if err == nil || errors.Is(err, io.EOF) {
			b.Reset()
		}
		wait := b.Duration()
		s.log.Debug("stream ended, retrying", zap.Error(err), zap.Duration("wait", wait))
		select {
		case <-time.After(wait):
		case <-s.Closed():
			return
		}
	}
}

// socket 同时实现 Puller 和 Pusher。
type socket struct {
	*transport.Queue

	endpoint transport.Endpoint
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	server *grpc.Server
	conn   *grpc.ClientConn
	// loopDone 在 connect 端的流循环退出后关闭。
	loopDone chan struct{}
	// drain 为 true 时 Close 等待流循环退出。
	drain bool
}

func (t *Transport) newSocket(ep transport.Endpoint, mode string) *socket {
	ctx, cancel := context.WithCancel(context.Background())
	return &socket{
		Queue:    transport.NewQueue(t.opts),
		endpoint: ep,
		log:      t.log.With(zap.String("endpoint", ep.Address()), zap.String("mode", mode)),
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}
}

func (s *socket) Endpoint() transport.Endpoint {
	return s.endpoint
}

// Close 停止服务或断开连接。可重复调用。
func (s *socket) Close() error {
	if !s.Shutdown() {
		return nil
	}
	if s.drain {
		// 给 Push 流留出半关闭的时间，让已写出的帧到达对端
		select {
		case <-s.loopDone:
		case <-time.After(closeGrace):
		}
	}
	s.cancel()
	if s.server != nil {
		s.server.Stop()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// pullStream 半关闭发送方向后持续接收。
func (s *socket) pullStream(stream grpc.ClientStream) error {
	if err := stream.CloseSend(); err != nil {
		return err
	}
	return s.receiveFrom(stream)
}

// pushStream 持续发送，同时等待对端结束流。关闭时半关闭并等待对端确认。
func (s *socket) pushStream(stream grpc.ClientStream) error {
	ended := make(chan error, 1)
	go func() {
		var f rawFrame
		ended <- stream.RecvMsg(&f)
	}()

	for {
		select {
		case data := <-s.Outbox():
			err := stream.SendMsg(&rawFrame{data: data})
			s.Written()
			if err != nil {
				s.log.Warn("frame dropped", zap.Error(err))
				return err
			}
		case err := <-ended:
			return err
		case <-s.Closed():
			_ = stream.CloseSend()
			select {
			case <-ended:
			case <-time.After(closeGrace):
			}
			return transport.ErrClosed
		}
	}
}

// receiveFrom 从流中读取帧放入收件箱。
func (s *socket) receiveFrom(stream interface{ RecvMsg(any) error }) error {
	for {
		var f rawFrame
		if err := stream.RecvMsg(&f); err != nil {
			return err
		}
		if !s.Deliver(f.data) {
			return transport.ErrClosed
		}
	}
}

// sendTo 从发件箱取帧写入流，对端断开时返回。
func (s *socket) sendTo(stream grpc.ServerStream) error {
	for {
		select {
		case data := <-s.Outbox():
			err := stream.SendMsg(&rawFrame{data: data})
			s.Written()
			if err != nil {
				s.log.Warn("frame dropped", zap.Error(err))
				return err
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-s.Closed():
			return transport.ErrClosed
		}
	}
}

// boundPull 只接受 Push 流。
type boundPull struct{ s *socket }

func (b boundPull) Push(stream grpc.ServerStream) error {
	err := b.s.receiveFrom(stream)
	if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
		return nil
	}
	return err
}

func (b boundPull) Pull(grpc.ServerStream) error {
	return status.Error(codes.Unimplemented, "endpoint is a pull endpoint")
}

// boundPush 只接受 Pull 流。
type boundPush struct{ s *socket }

func (b boundPush) Push(grpc.ServerStream) error {
	return status.Error(codes.Unimplemented, "endpoint is a push endpoint")
}

func (b boundPush) Pull(stream grpc.ServerStream) error {
	err := b.s.sendTo(stream)
	if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
