package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// tasksCmd 是 tasks 子命令
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "列出可解析的任务",
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)

	f := tasksCmd.Flags()
	f.Bool("auto-discover", false, "同时列出发现源中的任务")
	f.String("script-dir", "", "JS 任务脚本目录")
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cfg)

	entries, err := newResolver(cfg).Catalog()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Source)
	}
	return w.Flush()
}
