// Package mem 提供进程内的 push/pull 传输，用于测试和单进程运行。
package mem

import (
	"context"
	"fmt"
	"sync"

	"yqhp/taskqueue/internal/transport"
)

// Transport 是进程内传输。同一个 Transport 实例上的端点按地址互通。
type Transport struct {
	opts transport.Options

	mu     sync.Mutex
	queues map[string]*queue
}

type queue struct {
	ch    chan []byte
	bound bool
}

// New 创建进程内传输。
func New(opts transport.Options) *Transport {
	return &Transport{
		opts:   opts.WithDefaults(),
		queues: make(map[string]*queue),
	}
}

// Kind 返回传输类型。
func (t *Transport) Kind() transport.Kind {
	return transport.KindMem
}

// BindPull 在 ep 上绑定 pull 端点。
func (t *Transport) BindPull(ctx context.Context, ep transport.Endpoint) (transport.Puller, error) {
	q, err := t.bind(ep)
	if err != nil {
		return nil, err
	}
	return newSocket(t, ep, q, true), nil
}

// BindPush 在 ep 上绑定 push 端点。
func (t *Transport) BindPush(ctx context.Context, ep transport.Endpoint) (transport.Pusher, error) {
	q, err := t.bind(ep)
	if err != nil {
		return nil, err
	}
	return newSocket(t, ep, q, true), nil
}

// ConnectPull 连接到 ep 的 push 端点。允许先于 bind 连接。
func (t *Transport) ConnectPull(ctx context.Context, ep transport.Endpoint) (transport.Puller, error) {
	return newSocket(t, ep, t.queue(ep), false), nil
}

// ConnectPush 连接到 ep 的 pull 端点。允许先于 bind 连接。
func (t *Transport) ConnectPush(ctx context.Context, ep transport.Endpoint) (transport.Pusher, error) {
	return newSocket(t, ep, t.queue(ep), false), nil
}

func (t *Transport) queue(ep transport.Endpoint) *queue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queueLocked(ep.Address())
}

func (t *Transport) queueLocked(addr string) *queue {
	q, ok := t.queues[addr]
	if !ok {
		q = &queue{ch: make(chan []byte, t.opts.SendBuffer)}
		t.queues[addr] = q
	}
	return q
}

func (t *Transport) bind(ep transport.Endpoint) (*queue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.queueLocked(ep.Address())
	if q.bound {
		return nil, fmt.Errorf("%w: %s", transport.ErrAddressInUse, ep.Address())
	}
	q.bound = true
	return q, nil
}

func (t *Transport) unbind(ep transport.Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.queues[ep.Address()]; ok {
		q.bound = false
	}
}

// socket 同时实现 Puller 和 Pusher，由绑定方法决定对外暴露哪个接口。
type socket struct {
	t        *Transport
	endpoint transport.Endpoint
	q        *queue
	bound    bool

	done      chan struct{}
	closeOnce sync.Once
}

func newSocket(t *Transport, ep transport.Endpoint, q *queue, bound bool) *socket {
	return &socket{
		t:        t,
		endpoint: ep,
		q:        q,
		bound:    bound,
		done:     make(chan struct{}),
	}
}

func (s *socket) Endpoint() transport.Endpoint {
	return s.endpoint
}

func (s *socket) Send(ctx context.Context, frame []byte) error {
	buf := make([]byte, len(frame))
	copy(buf, frame)
	return transport.Enqueue(ctx, s.q.ch, buf, s.t.opts.SendTimeout, s.done)
}

func (s *socket) Receive(ctx context.Context) ([]byte, error) {
	return transport.Dequeue(ctx, s.q.ch, s.done)
}

// Close 关闭套接字；bind 端关闭后地址可被重新绑定。可重复调用。
func (s *socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.bound {
			s.t.unbind(s.endpoint)
		}
	})
	return nil
}
