package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

var (
	// ErrClosed 表示套接字已关闭。
	ErrClosed = errors.New("transport: socket closed")
	// ErrAddressInUse 表示地址已被另一个 bind 端点占用。
	ErrAddressInUse = errors.New("transport: address already in use")
	// ErrSendTimeout 表示发送缓冲区在超时前一直是满的。
	ErrSendTimeout = errors.New("transport: send timed out")
)

// Kind 标识传输实现。
type Kind string

const (
	KindWebSocket Kind = "ws"
	KindMem       Kind = "mem"
	KindGRPC      Kind = "grpc"
)

// Endpoint 是 host:port 形式的端点地址。
type Endpoint struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// NewEndpoint 创建端点。
func NewEndpoint(host string, port int) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// Address 返回 net 包使用的地址。
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}

// Puller 接收帧。
type Puller interface {
	// Receive 阻塞直到收到下一帧、ctx 结束或套接字关闭。
	Receive(ctx context.Context) ([]byte, error)
	// Endpoint 返回端点地址。
	Endpoint() Endpoint
	io.Closer
}

// Pusher 发送帧。
type Pusher interface {
	// Send 把帧放入发送队列；队列满时阻塞直到有空间、ctx 结束或超时。
	Send(ctx context.Context, frame []byte) error
	// Endpoint 返回端点地址。
	Endpoint() Endpoint
	io.Closer
}

// Flusher 由缓冲发送的 Pusher 实现。
type Flusher interface {
	// Flush 阻塞直到缓冲区中的帧全部写出。
	Flush(ctx context.Context) error
}

// Flush 在 p 支持时等待缓冲区写空，否则直接返回。
func Flush(ctx context.Context, p Pusher) error {
	if f, ok := p.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Transport 创建 push/pull 套接字。
type Transport interface {
	Kind() Kind
	BindPull(ctx context.Context, ep Endpoint) (Puller, error)
	BindPush(ctx context.Context, ep Endpoint) (Pusher, error)
	ConnectPull(ctx context.Context, ep Endpoint) (Puller, error)
	ConnectPush(ctx context.Context, ep Endpoint) (Pusher, error)
}

// Options 是传输实现共用的选项。
type Options struct {
	// SendBuffer 是每个 push 套接字的发送缓冲帧数。
	SendBuffer int
	// SendTimeout 是缓冲区满时 Send 的最长等待时间，0 表示只受 ctx 限制。
	SendTimeout time.Duration
	// DialTimeout 是 connect 端单次拨号的超时时间。
	DialTimeout time.Duration
}

// DefaultOptions 返回默认选项。
func DefaultOptions() Options {
	return Options{
		SendBuffer:  1024,
		SendTimeout: 5 * time.Second,
		DialTimeout: 10 * time.Second,
	}
}

// WithDefaults 用默认值填充未设置的字段。
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.SendTimeout < 0 {
		o.SendTimeout = 0
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	return o
}

// Enqueue 把帧写入 ch，遵守 ctx、超时和关闭信号。mem 与 ws 实现共用。
func Enqueue(ctx context.Context, ch chan<- []byte, frame []byte, timeout time.Duration, closed <-chan struct{}) error {
	select {
	case <-closed:
		return ErrClosed
	default:
	}

	// 快路径：缓冲区未满
	select {
	case ch <- frame:
		return nil
	default:
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case ch <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-closed:
		return ErrClosed
	case <-timer:
		return ErrSendTimeout
	}
}

// Dequeue 从 ch 读取一帧，遵守 ctx 和关闭信号。
func Dequeue(ctx context.Context, ch <-chan []byte, closed <-chan struct{}) ([]byte, error) {
	select {
	case <-closed:
		return nil, ErrClosed
	default:
	}

	select {
	case frame := <-ch:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-closed:
		return nil, ErrClosed
	}
}
