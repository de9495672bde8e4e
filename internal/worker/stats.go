package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// 执行耗时直方图范围：1µs 到 1h，单位微秒。
const (
	histMin     = 1
	histMax     = int64(time.Hour / time.Microsecond)
	histSigFigs = 3
)

// Event 是 worker 处理消息时产生的事件。
type Event string

const (
	EventReceived      Event = "received"
	EventForwarded     Event = "forwarded"
	EventForwardFailed Event = "forward_failed"
	EventExecuted      Event = "executed"
	EventFailed        Event = "failed"
	EventNotFound      Event = "not_found"
	EventMalformed     Event = "malformed"
)

// Observer 接收 worker 事件，took 只对执行类事件有意义。
type Observer interface {
	Observe(worker string, event Event, took time.Duration)
}

type stats struct {
	received      atomic.Int64
	forwarded     atomic.Int64
	forwardFailed atomic.Int64
	executed      atomic.Int64
	failed        atomic.Int64
	notFound      atomic.Int64
	malformed     atomic.Int64

	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newStats() *stats {
	return &stats{
		hist: hdrhistogram.New(histMin, histMax, histSigFigs),
	}
}

func (s *stats) count(event Event) {
	switch event {
	case EventReceived:
		s.received.Add(1)
	case EventForwarded:
		s.forwarded.Add(1)
	case EventForwardFailed:
		s.forwardFailed.Add(1)
	case EventExecuted:
		s.executed.Add(1)
	case EventFailed:
		s.failed.Add(1)
	case EventNotFound:
		s.notFound.Add(1)
	case EventMalformed:
		s.malformed.Add(1)
	}
}

func (s *stats) recordDuration(d time.Duration) {
	v := int64(d / time.Microsecond)
	if v < histMin {
		v = histMin
	}
	if v > histMax {
		v = histMax
	}

	s.mu.Lock()
	_ = s.hist.RecordValue(v)
	s.mu.Unlock()
}

// quantiles 返回 p50 和 p99 执行耗时。
func (s *stats) quantiles() (p50, p99 time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hist.TotalCount() == 0 {
		return 0, 0
	}
	p50 = time.Duration(s.hist.ValueAtQuantile(50)) * time.Microsecond
	p99 = time.Duration(s.hist.ValueAtQuantile(99)) * time.Microsecond
	return p50, p99
}
