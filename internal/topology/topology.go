// Package topology 按端口布局构建 worker 池。
//
// master 的入口端点位于 BasePort，第 i 个 slave 位于 BasePort+i+1。
// master 在每个 slave 端口上绑定 push 端点，slave 连接到同一端口拉取任务。
package topology

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"yqhp/taskqueue/internal/task"
	"yqhp/taskqueue/internal/transport"
	"yqhp/taskqueue/internal/worker"
	"yqhp/taskqueue/pkg/logger"
)

const maxPort = 65535

// Topology 描述一个池的端点布局。
type Topology struct {
	Host       string `json:"host" yaml:"host"`
	BasePort   int    `json:"base_port" yaml:"base_port"`
	SlaveCount int    `json:"slaves" yaml:"slaves"`
}

// New 创建拓扑描述。
func New(host string, basePort, slaveCount int) Topology {
	return Topology{Host: host, BasePort: basePort, SlaveCount: slaveCount}
}

// Validate 检查拓扑参数。
func (t Topology) Validate() error {
	if t.Host == "" {
		return errors.New("topology: host is required")
	}
	if t.SlaveCount < 0 {
		return fmt.Errorf("topology: slave count must be non-negative, got %d", t.SlaveCount)
	}
	if t.BasePort < 1 || t.BasePort > maxPort {
		return fmt.Errorf("topology: base port %d out of range", t.BasePort)
	}
	if t.SlaveCount > maxPort-t.BasePort {
		return fmt.Errorf("topology: %d slaves above base port %d exceed %d", t.SlaveCount, t.BasePort, maxPort)
	}
	return nil
}

// MasterEndpoint 返回 master 入口端点。
func (t Topology) MasterEndpoint() transport.Endpoint {
	return transport.NewEndpoint(t.Host, t.BasePort)
}

// SlaveEndpoint 返回第 i 个 slave 的端点。
func (t Topology) SlaveEndpoint(i int) transport.Endpoint {
	return transport.NewEndpoint(t.Host, t.BasePort+i+1)
}

// Endpoints 返回全部 SlaveCount+1 个端点，master 在前。
func (t Topology) Endpoints() []transport.Endpoint {
	eps := make([]transport.Endpoint, 0, t.SlaveCount+1)
	eps = append(eps, t.MasterEndpoint())
	for i := 0; i < t.SlaveCount; i++ {
		eps = append(eps, t.SlaveEndpoint(i))
	}
	return eps
}

// Build 绑定并连接所有端点，创建 slave 和 master worker。
// 任一端点失败时关闭已打开的端点并返回错误。opts 应用到每个 worker。
func (t Topology) Build(ctx context.Context, tr transport.Transport, runner *task.Runner, opts ...worker.Option) (*Pool, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := logger.Named("topology").With(zap.String("pool", id))

	var opened []io.Closer
	cleanup := func() {
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i].Close()
		}
	}

	ingress, err := tr.BindPull(ctx, t.MasterEndpoint())
	if err != nil {
		return nil, fmt.Errorf("bind master %s: %w", t.MasterEndpoint(), err)
	}
	opened = append(opened, ingress)

	pushers := make([]transport.Pusher, 0, t.SlaveCount)
	pullers := make([]transport.Puller, 0, t.SlaveCount)
	for i := 0; i < t.SlaveCount; i++ {
		ep := t.SlaveEndpoint(i)

		push, err := tr.BindPush(ctx, ep)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("bind slave %d push %s: %w", i, ep, err)
		}
		opened = append(opened, push)
		pushers = append(pushers, push)

		pull, err := tr.ConnectPull(ctx, ep)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect slave %d pull %s: %w", i, ep, err)
		}
		opened = append(opened, pull)
		pullers = append(pullers, pull)
	}

	slaves := make([]*worker.Worker, 0, t.SlaveCount)
	for i, pull := range pullers {
		slaves = append(slaves, worker.NewSlave(pull, runner, withName(opts, fmt.Sprintf("slave-%d", i))...))
	}
	master := worker.NewMaster(ingress, pushers, runner, withName(opts, "master")...)

	log.Info("topology built",
		zap.String("transport", string(tr.Kind())),
		zap.String("master", t.MasterEndpoint().Address()),
		zap.Int("slaves", t.SlaveCount),
	)

	return &Pool{
		id:       id,
		topology: t,
		master:   master,
		slaves:   slaves,
		log:      log,
	}, nil
}

func withName(opts []worker.Option, name string) []worker.Option {
	out := make([]worker.Option, 0, len(opts)+1)
	out = append(out, opts...)
	return append(out, worker.WithName(name))
}

// BuildAndRun 构建池并运行到 ctx 取消或某个 worker 失败。
func BuildAndRun(ctx context.Context, t Topology, tr transport.Transport, runner *task.Runner, opts ...worker.Option) error {
	pool, err := t.Build(ctx, tr, runner, opts...)
	if err != nil {
		return err
	}
	return pool.Run(ctx)
}
