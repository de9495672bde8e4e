package topology

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"yqhp/taskqueue/internal/worker"
	"yqhp/taskqueue/pkg/types"
)

// ErrPoolRunning 表示池已经在运行或运行过。
var ErrPoolRunning = errors.New("topology: pool already started")

// Pool 是一组已连接的 worker。
type Pool struct {
	id       string
	topology Topology
	master   *worker.Worker
	slaves   []*worker.Worker
	log      *zap.Logger

	mu      sync.Mutex
	started bool
}

// ID 返回池的运行 ID。
func (p *Pool) ID() string {
	return p.id
}

// Topology 返回池的拓扑。
func (p *Pool) Topology() Topology {
	return p.topology
}

// Master 返回 master worker。
func (p *Pool) Master() *worker.Worker {
	return p.master
}

// Slaves 返回 slave worker，顺序与 master 的轮询顺序一致。
func (p *Pool) Slaves() []*worker.Worker {
	return append([]*worker.Worker(nil), p.slaves...)
}

// Workers 返回全部 worker，master 在前。
func (p *Pool) Workers() []*worker.Worker {
	all := make([]*worker.Worker, 0, len(p.slaves)+1)
	all = append(all, p.master)
	return append(all, p.slaves...)
}

// Snapshots 返回全部 worker 的统计快照。
func (p *Pool) Snapshots() []types.WorkerSnapshot {
	workers := p.Workers()
	snaps := make([]types.WorkerSnapshot, len(workers))
	for i, w := range workers {
		snaps[i] = w.Snapshot()
	}
	return snaps
}

// Run 在大小为 SlaveCount+1 的 goroutine 池上启动所有 worker，阻塞直到全部返回。
// ctx 取消时所有 worker 退出并返回 nil；任一 worker 出错时取消其余 worker 并返回该错误。
func (p *Pool) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrPoolRunning
	}
	p.started = true
	p.mu.Unlock()

	workers := p.Workers()
	defer p.Stop()

	gp, err := ants.NewPool(len(workers))
	if err != nil {
		return fmt.Errorf("create goroutine pool: %w", err)
	}
	defer gp.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	p.log.Info("pool starting", zap.Int("workers", len(workers)))

	for _, w := range workers {
		wg.Add(1)
		err := gp.Submit(func() {
			defer wg.Done()
			if err := runWorker(ctx, w); err != nil {
				p.log.Error("worker failed", zap.String("worker", w.Name()), zap.Error(err))
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit worker %s: %w", w.Name(), err))
			break
		}
	}

	wg.Wait()
	p.log.Info("pool stopped")
	return firstErr
}

// runWorker 运行 worker 并把 panic 转换为错误。
func runWorker(ctx context.Context, w *worker.Worker) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("worker %s panic: %v\n%s", w.Name(), rec, debug.Stack())
		}
	}()
	return w.Start(ctx)
}

// Stop 停止所有 worker 并关闭它们的端点。可重复调用。
func (p *Pool) Stop() error {
	var errs []error
	for _, w := range p.Workers() {
		errs = append(errs, w.Stop())
	}
	return errors.Join(errs...)
}
