package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/taskqueue/internal/config"
	"yqhp/taskqueue/internal/task"
	"yqhp/taskqueue/internal/task/script"
	"yqhp/taskqueue/internal/transport"
	"yqhp/taskqueue/internal/transport/mem"
	"yqhp/taskqueue/internal/transport/rpc"
	"yqhp/taskqueue/internal/transport/ws"
	"yqhp/taskqueue/pkg/logger"
)

// flagPaths 把命令行 flag 映射到配置路径。
var flagPaths = map[string]string{
	"host":          "topology.host",
	"port":          "topology.base_port",
	"slaves":        "topology.slaves",
	"transport":     "transport.kind",
	"auto-discover": "tasks.auto_discover",
	"script-dir":    "tasks.script_dir",
	"status":        "status.enabled",
	"status-addr":   "status.address",
}

// loadConfig 加载配置，显式设置的 flag 覆盖其他来源。
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := make(map[string]string)
	for name, path := range flagPaths {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			overrides[path] = f.Value.String()
		}
	}
	if debug {
		overrides["logging.level"] = "debug"
	} else if quiet {
		overrides["logging.level"] = "warn"
	}

	loader := config.NewLoader().WithOverrides(overrides)
	if cfgFile != "" {
		loader = loader.WithConfigPath(cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) {
	logger.Init(cfg.Logging.Logger())
	logger.SetLevelFromString(cfg.Logging.Level)
}

// newTransport 按配置创建传输。
func newTransport(cfg *config.Config) (transport.Transport, error) {
	opts := cfg.Transport.Options()
	switch transport.Kind(cfg.Transport.Kind) {
	case transport.KindWebSocket:
		return ws.New(opts, logger.Named("transport")), nil
	case transport.KindMem:
		return mem.New(opts), nil
	case transport.KindGRPC:
		return rpc.New(opts, logger.Named("transport")), nil
	default:
		return nil, fmt.Errorf("不支持的传输类型: %s", cfg.Transport.Kind)
	}
}

// newResolver 组合默认注册表和脚本发现源。
func newResolver(cfg *config.Config) *task.Resolver {
	var discovery []task.Source
	if cfg.Tasks.ScriptDir != "" {
		discovery = append(discovery, script.NewSource(cfg.Tasks.ScriptDir, cfg.Tasks.ScriptTimeout, logger.Named("script")))
	}
	if cfg.Tasks.AutoDiscover && len(discovery) == 0 {
		logger.Warn("auto discovery enabled without a script directory", zap.String("registry", task.DefaultRegistry.Name()))
	}
	return task.NewResolver(task.DefaultRegistry, cfg.Tasks.AutoDiscover, discovery...)
}
