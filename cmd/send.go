package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/taskqueue/internal/transport"
	"yqhp/taskqueue/pkg/logger"
	"yqhp/taskqueue/pkg/types"
)

// errSendInProcess 表示所选传输只在单个进程内可达，无法投递给另一个进程中的 master。
var errSendInProcess = errors.New("send: mem transport only reaches workers in the same process")

var (
	sendKwargs     []string
	sendKwargsJSON string
	sendTimeout    time.Duration
)

// sendCmd 是 send 子命令
var sendCmd = &cobra.Command{
	Use:   "send <task>",
	Short: "向 master 入口发送一条任务消息",
	Example: `  taskqueue send echo --kwarg name=ada
  taskqueue send sleep --kwargs '{"duration": "2s"}' --port 5690`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	f := sendCmd.Flags()
	f.String("host", "127.0.0.1", "master 地址")
	f.Int("port", 5690, "master 入口端口")
	f.String("transport", "ws", "传输类型 (ws, grpc)")
	f.StringArrayVar(&sendKwargs, "kwarg", nil, "任务参数 key=value，可重复")
	f.StringVar(&sendKwargsJSON, "kwargs", "", "JSON 对象形式的任务参数")
	f.DurationVar(&sendTimeout, "timeout", 10*time.Second, "等待发送完成的时间")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if transport.Kind(cfg.Transport.Kind) == transport.KindMem {
		return errSendInProcess
	}
	initLogging(cfg)
	defer logger.Sync()

	kwargs, err := parseKwargs(sendKwargsJSON, sendKwargs)
	if err != nil {
		return err
	}
	frame, err := types.EncodeMessage(types.NewTaskMessage(args[0], kwargs))
	if err != nil {
		return err
	}

	tr, err := newTransport(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	ep := cfg.Topology.Spec().MasterEndpoint()
	push, err := tr.ConnectPush(ctx, ep)
	if err != nil {
		return fmt.Errorf("连接 %s 失败: %w", ep, err)
	}
	defer push.Close()

	if err := push.Send(ctx, frame); err != nil {
		return fmt.Errorf("发送任务失败: %w", err)
	}
	if err := transport.Flush(ctx, push); err != nil {
		return fmt.Errorf("发送任务失败: %w", err)
	}

	logger.Debug("task sent", zap.String("task", args[0]), zap.String("endpoint", ep.Address()))
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "已发送 %s -> %s\n", args[0], ep)
	}
	return nil
}

// parseKwargs 合并 JSON 参数和 key=value 参数，后者优先。
// value 是合法 JSON 时按 JSON 解析，否则作为字符串。
func parseKwargs(raw string, pairs []string) (map[string]any, error) {
	kwargs := make(map[string]any)
	if raw != "" {
		if err := sonic.UnmarshalString(raw, &kwargs); err != nil {
			return nil, fmt.Errorf("解析 --kwargs 失败: %w", err)
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("无效的参数 %q，期望 key=value", pair)
		}
		var v any
		if err := sonic.UnmarshalString(value, &v); err != nil {
			v = value
		}
		kwargs[key] = v
	}
	return kwargs, nil
}
