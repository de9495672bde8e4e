package config

import (
	"fmt"
	"net"
	"strings"

	"yqhp/taskqueue/internal/transport"
)

const maxPort = 65535

// ValidationError 是单个配置项的校验错误。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors 收集所有校验错误。
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "configuration validation failed:\n  - " + strings.Join(msgs, "\n  - ")
}

// Has 返回 field 是否有校验错误。
func (e ValidationErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validator 校验配置。
type Validator struct {
	errors ValidationErrors
}

// NewValidator 创建校验器。
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) addError(field, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate 校验全部配置，返回 ValidationErrors 或 nil。
func (v *Validator) Validate(cfg *Config) error {
	v.errors = nil

	v.validateTopology(&cfg.Topology)
	v.validateTransport(&cfg.Transport)
	v.validateTasks(&cfg.Tasks)
	v.validateStatus(&cfg.Status)
	v.validateLogging(&cfg.Logging)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) validateTopology(cfg *TopologyConfig) {
	if cfg.Host == "" {
		v.addError("topology.host", "host is required")
	}
	if cfg.Slaves < 0 {
		v.addError("topology.slaves", "slave count must be non-negative")
	}
	if cfg.BasePort < 1 || cfg.BasePort > maxPort {
		v.addError("topology.base_port", "port must be between 1 and %d", maxPort)
	} else if cfg.Slaves > maxPort-cfg.BasePort {
		v.addError("topology.base_port", "base_port + slaves exceeds %d", maxPort)
	}
}

func (v *Validator) validateTransport(cfg *TransportConfig) {
	switch transport.Kind(cfg.Kind) {
	case transport.KindWebSocket, transport.KindMem, transport.KindGRPC:
	default:
		v.addError("transport.kind", "invalid transport '%s', must be one of: ws, mem, grpc", cfg.Kind)
	}
	if cfg.SendBuffer <= 0 {
		v.addError("transport.send_buffer", "send buffer must be positive")
	}
	if cfg.SendTimeout < 0 {
		v.addError("transport.send_timeout", "send timeout must be non-negative")
	}
	if cfg.DialTimeout <= 0 {
		v.addError("transport.dial_timeout", "dial timeout must be positive")
	}
}

func (v *Validator) validateTasks(cfg *TasksConfig) {
	if cfg.ScriptTimeout <= 0 {
		v.addError("tasks.script_timeout", "script timeout must be positive")
	}
}

func (v *Validator) validateStatus(cfg *StatusConfig) {
	if cfg.Enabled && !isValidAddress(cfg.Address) {
		v.addError("status.address", "invalid address '%s', expected host:port or :port", cfg.Address)
	}
}

func (v *Validator) validateLogging(cfg *LoggingConfig) {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", "invalid log level '%s', must be one of: debug, info, warn, error", cfg.Level)
	}

	switch strings.ToLower(cfg.Format) {
	case "json", "console":
	default:
		v.addError("logging.format", "invalid log format '%s', must be one of: json, console", cfg.Format)
	}

	switch strings.ToLower(cfg.Output) {
	case "stdout", "stderr":
	case "file", "both":
		if cfg.FilePath == "" {
			v.addError("logging.file_path", "file path is required for output '%s'", cfg.Output)
		}
	default:
		v.addError("logging.output", "invalid log output '%s', must be one of: stdout, stderr, file, both", cfg.Output)
	}
}

// isValidAddress 检查 host:port 或 :port。
func isValidAddress(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	_, err = net.LookupPort("tcp", port)
	return err == nil
}

// Validate 校验配置。
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}

// LoadAndValidate 从文件加载并校验配置。
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
