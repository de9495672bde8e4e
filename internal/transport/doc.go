// Package transport 定义 push/pull 消息通道。
//
// push 端单向发送帧，pull 端接收帧，没有请求/响应语义。每个端点要么 bind
// （被动监听），要么 connect（主动连接）。实现位于子包 mem（进程内）、ws（WebSocket）和 rpc（gRPC 流）。
package transport
