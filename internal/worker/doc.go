// Package worker 实现任务 worker。
//
// master worker 从入口端点接收任务帧；有 slave 时按轮询把原始帧转发给
// slave，没有 slave 时自己解码并执行。slave worker 从 master 的 push
// 端点拉取任务并执行。每个 worker 在一个 goroutine 中顺序处理消息。
package worker
