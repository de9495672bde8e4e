package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"yqhp/taskqueue/internal/task"
	"yqhp/taskqueue/internal/transport"
	"yqhp/taskqueue/pkg/logger"
	"yqhp/taskqueue/pkg/types"
)

// ErrInvalidState 表示在当前状态下不允许该操作。
var ErrInvalidState = errors.New("worker: invalid state")

// Worker 从一个端点接收任务帧，转发给 slave 或直接执行。
type Worker struct {
	name     string
	role     types.WorkerRole
	endpoint transport.Puller
	slaves   []transport.Pusher
	runner   *task.Runner
	log      *zap.Logger
	observer Observer

	mu        sync.Mutex
	cursor    int
	state     types.WorkerState
	startedAt time.Time

	stats *stats
}

// Option 配置 Worker。
type Option func(*Worker)

// WithName 设置 worker 名称，默认为角色加端点地址。
func WithName(name string) Option {
	return func(w *Worker) {
		w.name = name
	}
}

// WithLogger 设置日志记录器。
func WithLogger(log *zap.Logger) Option {
	return func(w *Worker) {
		w.log = log
	}
}

// WithObserver 设置事件观察者。
func WithObserver(o Observer) Option {
	return func(w *Worker) {
		w.observer = o
	}
}

// NewMaster 创建 master worker。slaves 的顺序即轮询顺序，worker 拥有这些 pusher 并在 Stop 时关闭。
func NewMaster(endpoint transport.Puller, slaves []transport.Pusher, runner *task.Runner, opts ...Option) *Worker {
	list := make([]transport.Pusher, len(slaves))
	copy(list, slaves)
	return newWorker(types.WorkerRoleMaster, endpoint, list, runner, opts)
}

// NewSlave 创建 slave worker。
func NewSlave(endpoint transport.Puller, runner *task.Runner, opts ...Option) *Worker {
	return newWorker(types.WorkerRoleSlave, endpoint, nil, runner, opts)
}

func newWorker(role types.WorkerRole, endpoint transport.Puller, slaves []transport.Pusher, runner *task.Runner, opts []Option) *Worker {
	w := &Worker{
		role:     role,
		endpoint: endpoint,
		slaves:   slaves,
		runner:   runner,
		state:    types.WorkerStateCreated,
		stats:    newStats(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name == "" {
		w.name = fmt.Sprintf("%s-%d", role, endpoint.Endpoint().Port)
	}
	if w.log == nil {
		w.log = logger.Named("worker")
	}
	w.log = w.log.With(zap.String("worker", w.name), zap.String("endpoint", endpoint.Endpoint().Address()))
	return w
}

// Name 返回 worker 名称。
func (w *Worker) Name() string {
	return w.name
}

// Role 返回 worker 角色。
func (w *Worker) Role() types.WorkerRole {
	return w.role
}

// Endpoint 返回 worker 监听的端点。
func (w *Worker) Endpoint() transport.Endpoint {
	return w.endpoint.Endpoint()
}

// Slaves 返回 slave 端点列表，顺序与轮询顺序一致。
func (w *Worker) Slaves() []transport.Endpoint {
	eps := make([]transport.Endpoint, len(w.slaves))
	for i, s := range w.slaves {
		eps[i] = s.Endpoint()
	}
	return eps
}

// State 返回当前状态。
func (w *Worker) State() types.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start 进入接收循环并阻塞，直到 ctx 取消或 worker 被停止，这两种情况都返回 nil。
// 接收出现其他错误时返回该错误。只有处于 created 状态的 worker 可以启动。
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != types.WorkerStateCreated {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: cannot start %s worker", ErrInvalidState, state)
	}
	w.state = types.WorkerStateRunning
	w.startedAt = time.Now()
	w.mu.Unlock()

	defer w.Stop()

	w.log.Info("worker started", zap.String("role", string(w.role)), zap.Int("slaves", len(w.slaves)))

	for {
		frame, err := w.endpoint.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				w.log.Info("worker stopped")
				return nil
			}
			w.log.Error("receive failed", zap.Error(err))
			return fmt.Errorf("worker %s: receive: %w", w.name, err)
		}

		w.emit(EventReceived, 0)
		w.dispatch(ctx, frame)
	}
}

// dispatch 处理一帧。错误只记录日志，不会中断循环。
func (w *Worker) dispatch(ctx context.Context, frame []byte) {
	if len(w.slaves) > 0 {
		w.forward(ctx, frame)
		return
	}
	w.execute(ctx, frame)
}

// forward 把原始帧发送给当前游标指向的 slave，无论发送是否成功游标都前进。
func (w *Worker) forward(ctx context.Context, frame []byte) {
	w.mu.Lock()
	slave := w.slaves[w.cursor]
	w.cursor = (w.cursor + 1) % len(w.slaves)
	w.mu.Unlock()

	w.log.Info("sending task to slave worker")
	if err := slave.Send(ctx, frame); err != nil {
		w.emit(EventForwardFailed, 0)
		w.log.Error("forward task failed", zap.String("slave", slave.Endpoint().Address()), zap.Error(err))
		return
	}
	w.emit(EventForwarded, 0)
}

func (w *Worker) execute(ctx context.Context, frame []byte) {
	msg, err := types.DecodeMessage(frame)
	if err != nil {
		w.emit(EventMalformed, 0)
		w.log.Error("malformed task message", zap.Int("size", len(frame)), zap.Error(err))
		return
	}

	w.log.Info("received task", zap.String("task", msg.Task))

	start := time.Now()
	err = w.runner.Execute(ctx, msg.Task, task.Kwargs(msg.Kwargs))
	took := time.Since(start)

	switch {
	case err == nil:
		w.stats.recordDuration(took)
		w.emit(EventExecuted, took)
	case task.IsNotFoundError(err):
		// Runner 已经记录过日志
		w.emit(EventNotFound, 0)
	default:
		w.stats.recordDuration(took)
		w.emit(EventFailed, took)
		w.log.Error("task failed", zap.String("task", msg.Task), zap.Duration("took", took), zap.Error(err))
	}
}

func (w *Worker) emit(event Event, took time.Duration) {
	w.stats.count(event)
	if w.observer != nil {
		w.observer.Observe(w.name, event, took)
	}
}

// Stop 停止 worker：游标归零，关闭端点和 slave pusher。可重复调用，可从任意 goroutine 调用。
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.cursor = 0
	if w.state == types.WorkerStateStopped {
		w.mu.Unlock()
		return nil
	}
	w.state = types.WorkerStateStopped
	w.mu.Unlock()

	// 状态先置为 stopped 再在锁外关闭，Snapshot 可能短暂看到 stopped 而 pusher 仍未关闭，Stop 返回后全部已关闭
	errs := []error{w.endpoint.Close()}
	for _, s := range w.slaves {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Snapshot 返回运行统计快照。
func (w *Worker) Snapshot() types.WorkerSnapshot {
	w.mu.Lock()
	state := w.state
	startedAt := w.startedAt
	w.mu.Unlock()

	p50, p99 := w.stats.quantiles()
	return types.WorkerSnapshot{
		Name:          w.name,
		Role:          w.role,
		Endpoint:      w.endpoint.Endpoint().Address(),
		State:         state,
		Slaves:        len(w.slaves),
		Received:      w.stats.received.Load(),
		Forwarded:     w.stats.forwarded.Load(),
		ForwardFailed: w.stats.forwardFailed.Load(),
		Executed:      w.stats.executed.Load(),
		Failed:        w.stats.failed.Load(),
		NotFound:      w.stats.notFound.Load(),
		Malformed:     w.stats.malformed.Load(),
		ExecP50:       p50,
		ExecP99:       p99,
		StartedAt:     startedAt,
	}
}
