package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Queue 是网络套接字共用的收发缓冲。
// 读取方把收到的帧 Deliver 到收件箱，写出方从 Outbox 取帧并在写完后调用 Done。
type Queue struct {
	inbox       chan []byte
	outbox      chan []byte
	sendTimeout time.Duration
	// pending 是已入队但尚未写出的帧数。
	pending atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once
}

// NewQueue 按选项创建缓冲。
func NewQueue(opts Options) *Queue {
	opts = opts.WithDefaults()
	return &Queue{
		inbox:       make(chan []byte, opts.SendBuffer),
		outbox:      make(chan []byte, opts.SendBuffer),
		sendTimeout: opts.SendTimeout,
		closed:      make(chan struct{}),
	}
}

// Send 复制帧并放入发件箱。
func (q *Queue) Send(ctx context.Context, frame []byte) error {
	buf := make([]byte, len(frame))
	copy(buf, frame)
	q.pending.Add(1)
	if err := Enqueue(ctx, q.outbox, buf, q.sendTimeout, q.closed); err != nil {
		q.pending.Add(-1)
		return err
	}
	return nil
}

// Receive 从收件箱取下一帧。
func (q *Queue) Receive(ctx context.Context) ([]byte, error) {
	return Dequeue(ctx, q.inbox, q.closed)
}

// Flush 等待发件箱中的帧全部写出或被丢弃。
func (q *Queue) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-q.closed:
			return ErrClosed
		}
	}
}

// Deliver 把收到的帧放入收件箱，队列关闭时返回 false。
func (q *Queue) Deliver(frame []byte) bool {
	select {
	case q.inbox <- frame:
		return true
	case <-q.closed:
		return false
	}
}

// Outbox 返回待写出的帧。
func (q *Queue) Outbox() <-chan []byte {
	return q.outbox
}

// Written 标记一帧已写出或已丢弃。
func (q *Queue) Written() {
	q.pending.Add(-1)
}

// Closed 在队列关闭后可读。
func (q *Queue) Closed() <-chan struct{} {
	return q.closed
}

// IsClosed 返回队列是否已关闭。
func (q *Queue) IsClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

// Shutdown 关闭队列，只有第一次调用返回 true。
func (q *Queue) Shutdown() bool {
	first := false
	q.closeOnce.Do(func() {
		close(q.closed)
		first = true
	})
	return first
}
