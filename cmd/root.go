// Package cmd 提供 taskqueue CLI 的命令实现
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// 注册内置任务
	_ "yqhp/taskqueue/internal/task/builtin"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
	// Banner 是启动时显示的 ASCII 艺术
	Banner = `
   _            _                                
  | |_ __ _ ___| | __ __ _ _   _  ___ _   _  ___ 
  | __/ _' / __| |/ // _' | | | |/ _ \ | | |/ _ \
  | || (_| \__ \   <| (_| | |_| |  __/ |_| |  __/
   \__\__,_|___/_|\_\\__, |\__,_|\___|\__,_|\___| %s
                        |_|
`
)

var (
	// 全局配置
	cfgFile string
	debug   bool
	quiet   bool
)

// rootCmd 是根命令
var rootCmd = &cobra.Command{
	Use:   "taskqueue",
	Short: "push/pull 任务分发池",
	Long: `taskqueue 在一组 worker 之间分发命名任务。

master worker 在入口端点接收任务消息，按轮询转发给 slave worker；
没有 slave 时 master 自己执行任务。`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "静默模式")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}
