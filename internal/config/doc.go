// Package config 提供任务池的配置管理。
// 配置来源的优先级为：默认值 < YAML 文件 < 环境变量 (TQ_ 前缀) < 命令行参数。
package config
