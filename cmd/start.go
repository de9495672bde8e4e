package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yqhp/taskqueue/internal/metrics"
	"yqhp/taskqueue/internal/status"
	"yqhp/taskqueue/internal/task"
	"yqhp/taskqueue/internal/worker"
	"yqhp/taskqueue/pkg/logger"
)

// startCmd 是 start 子命令
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "启动任务池",
	Long: `启动 master 和 slave worker，直到收到 SIGINT 或 SIGTERM。

master 在 --port 上接收任务，第 i 个 slave 使用 --port+i+1。`,
	Example: `  # 单个 master，直接执行任务
  taskqueue start

  # 一个 master 加 4 个 slave
  taskqueue start --slaves 4 --port 5690

  # 从目录发现 JS 任务并开启状态接口
  taskqueue start --auto-discover --script-dir ./tasks --status`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	f := startCmd.Flags()
	f.Int("slaves", 0, "slave worker 数量")
	f.String("host", "127.0.0.1", "绑定地址")
	f.Int("port", 5690, "master 入口端口")
	f.String("transport", "ws", "传输类型 (ws, mem, grpc)")
	f.Bool("auto-discover", false, "注册表未命中时从发现源解析任务")
	f.String("script-dir", "", "JS 任务脚本目录")
	f.Bool("status", false, "启动状态 HTTP 服务")
	f.String("status-addr", ":9190", "状态 HTTP 服务地址")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cfg)
	defer logger.Sync()

	tr, err := newTransport(cfg)
	if err != nil {
		return err
	}
	resolver := newResolver(cfg)
	runner := task.NewRunner(resolver, nil)
	collector := metrics.New(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 处理关闭信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	topo := cfg.Topology.Spec()
	pool, err := topo.Build(ctx, tr, runner, worker.WithObserver(collector))
	if err != nil {
		return fmt.Errorf("构建任务池失败: %w", err)
	}
	collector.SetWorkers(len(pool.Workers()))

	if !quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, Banner, Version)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  池 ID:     %s\n", pool.ID())
		fmt.Fprintf(out, "  传输:      %s\n", tr.Kind())
		fmt.Fprintf(out, "  入口:      %s\n", topo.MasterEndpoint())
		fmt.Fprintf(out, "  slave 数:  %d\n", topo.SlaveCount)
		if cfg.Status.Enabled {
			fmt.Fprintf(out, "  状态接口:  %s\n", cfg.Status.Address)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "按 Ctrl+C 停止。")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	if cfg.Status.Enabled {
		srv := status.NewServer(&status.Config{
			Address:      cfg.Status.Address,
			ReadTimeout:  status.DefaultConfig().ReadTimeout,
			WriteTimeout: status.DefaultConfig().WriteTimeout,
		}, pool, resolver, collector.Handler())
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("任务池异常退出: %w", err)
	}
	return nil
}
