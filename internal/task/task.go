package task

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Func 是可执行的任务逻辑，kwargs 即消息中的命名参数。
type Func func(ctx context.Context, kwargs Kwargs) error

// Kwargs 是任务的命名参数。
type Kwargs map[string]any

// Has 检查参数是否存在。
func (k Kwargs) Has(key string) bool {
	_, ok := k[key]
	return ok
}

// String 返回字符串参数，缺失或类型不符时返回默认值。
func (k Kwargs) String(key, defaultVal string) string {
	return Optional(k, key, defaultVal)
}

// Bool 返回布尔参数，缺失或类型不符时返回默认值。
func (k Kwargs) Bool(key string, defaultVal bool) bool {
	return Optional(k, key, defaultVal)
}

// Int 返回整数参数。JSON 解码得到的 float64 只有在没有小数部分时才会被接受。
func (k Kwargs) Int(key string, defaultVal int) int {
	switch v := k[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	}
	return defaultVal
}

// Duration 返回时长参数，支持 "1s" 形式的字符串和以秒为单位的数字。
func (k Kwargs) Duration(key string, defaultVal time.Duration) time.Duration {
	switch v := k[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	case time.Duration:
		return v
	}
	return defaultVal
}

// Required 提取必需参数。
func Required[T any](kwargs Kwargs, key string) (T, error) {
	var zero T
	val, ok := kwargs[key]
	if !ok {
		return zero, fmt.Errorf("必需参数 '%s' 缺失", key)
	}
	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("参数 '%s' 类型无效，期望 %T，实际 %T", key, zero, val)
	}
	return typed, nil
}

// Optional 提取可选参数，缺失或类型不符时返回默认值。
func Optional[T any](kwargs Kwargs, key string, defaultVal T) T {
	val, ok := kwargs[key]
	if !ok {
		return defaultVal
	}
	typed, ok := val.(T)
	if !ok {
		return defaultVal
	}
	return typed
}
