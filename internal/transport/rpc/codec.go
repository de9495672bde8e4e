package rpc

import "fmt"

// rawFrame 是流上传输的一帧，编码就是帧本身。
type rawFrame struct {
	data []byte
}

// rawCodec 直接透传帧字节，不经过 protobuf。
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*rawFrame)
	if !ok {
		return nil, fmt.Errorf("rpc: unexpected message type %T", v)
	}
	return f.data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*rawFrame)
	if !ok {
		return fmt.Errorf("rpc: unexpected message type %T", v)
	}
	f.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string {
	return "taskqueue-raw"
}
