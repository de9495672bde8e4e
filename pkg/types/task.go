package types

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrMalformedMessage 表示收到的帧无法解析为 TaskMessage。
var ErrMalformedMessage = errors.New("malformed task message")

// TaskMessage 是生产者推送到 master 入口的任务消息。
// 字段顺序无关，键为 task 和 kwargs。
type TaskMessage struct {
	Task   string         `json:"task"`
	Kwargs map[string]any `json:"kwargs"`
}

// NewTaskMessage 创建一个任务消息，kwargs 为 nil 时使用空 map。
func NewTaskMessage(task string, kwargs map[string]any) *TaskMessage {
	if kwargs == nil {
		kwargs = make(map[string]any)
	}
	return &TaskMessage{Task: task, Kwargs: kwargs}
}

// EncodeMessage 将任务消息编码为 JSON 文本帧。
func EncodeMessage(msg *TaskMessage) ([]byte, error) {
	if msg == nil || msg.Task == "" {
		return nil, fmt.Errorf("%w: task name is required", ErrMalformedMessage)
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("编码任务消息失败: %w", err)
	}
	return data, nil
}

// DecodeMessage 从 JSON 文本帧解析任务消息。
func DecodeMessage(data []byte) (*TaskMessage, error) {
	var msg TaskMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Task == "" {
		return nil, fmt.Errorf("%w: missing task field", ErrMalformedMessage)
	}
	if msg.Kwargs == nil {
		msg.Kwargs = make(map[string]any)
	}
	return &msg, nil
}
