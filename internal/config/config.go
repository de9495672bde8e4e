package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"yqhp/taskqueue/internal/topology"
	"yqhp/taskqueue/internal/transport"
	"yqhp/taskqueue/pkg/logger"
)

// DefaultEnvPrefix 是环境变量前缀。
const DefaultEnvPrefix = "TQ_"

// Config 是任务池的完整配置。
type Config struct {
	Topology  TopologyConfig  `yaml:"topology"`
	Transport TransportConfig `yaml:"transport"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Status    StatusConfig    `yaml:"status"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TopologyConfig 描述端口布局。
type TopologyConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	BasePort int    `yaml:"base_port" env:"BASE_PORT"`
	Slaves   int    `yaml:"slaves" env:"SLAVES"`
}

// TransportConfig 描述消息传输。
type TransportConfig struct {
	Kind        string        `yaml:"kind" env:"TRANSPORT"`
	SendBuffer  int           `yaml:"send_buffer" env:"SEND_BUFFER"`
	SendTimeout time.Duration `yaml:"send_timeout" env:"SEND_TIMEOUT"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// TasksConfig 描述任务解析。
type TasksConfig struct {
	AutoDiscover  bool          `yaml:"auto_discover" env:"AUTO_DISCOVER"`
	ScriptDir     string        `yaml:"script_dir" env:"SCRIPT_DIR"`
	ScriptTimeout time.Duration `yaml:"script_timeout" env:"SCRIPT_TIMEOUT"`
}

// StatusConfig 描述状态 HTTP 服务。
type StatusConfig struct {
	Enabled bool   `yaml:"enabled" env:"STATUS_ENABLED"`
	Address string `yaml:"address" env:"STATUS_ADDRESS"`
}

// LoggingConfig 描述日志输出。
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"LOG_FILE"`
	MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		Topology: TopologyConfig{
			Host:     "127.0.0.1",
			BasePort: 5690,
			Slaves:   0,
		},
		Transport: TransportConfig{
			Kind:        string(transport.KindWebSocket),
			SendBuffer:  1024,
			SendTimeout: 5 * time.Second,
			DialTimeout: 10 * time.Second,
		},
		Tasks: TasksConfig{
			AutoDiscover:  false,
			ScriptTimeout: 30 * time.Second,
		},
		Status: StatusConfig{
			Enabled: false,
			Address: ":9190",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Spec 转换为拓扑描述。
func (c TopologyConfig) Spec() topology.Topology {
	return topology.New(c.Host, c.BasePort, c.Slaves)
}

// Options 转换为传输选项。
func (c TransportConfig) Options() transport.Options {
	return transport.Options{
		SendBuffer:  c.SendBuffer,
		SendTimeout: c.SendTimeout,
		DialTimeout: c.DialTimeout,
	}
}

// Logger 转换为日志配置。
func (c LoggingConfig) Logger() *logger.Config {
	return &logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}

// Loader 从多个来源加载配置。
type Loader struct {
	configPath string
	envPrefix  string
	overrides  map[string]string
	lookupEnv  func(string) (string, bool)
}

// NewLoader 创建配置加载器。
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		overrides: make(map[string]string),
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPath 设置 YAML 配置文件路径。
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀。
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithOverrides 设置命令行覆盖项，key 为点分路径，例如 topology.slaves。
func (l *Loader) WithOverrides(overrides map[string]string) *Loader {
	l.overrides = overrides
	return l
}

// Load 按优先级合并所有来源。
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := l.applyEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	for path, value := range l.overrides {
		if err := cfg.Set(path, value); err != nil {
			return nil, fmt.Errorf("应用命令行参数覆盖失败: %w", err)
		}
	}

	return cfg, nil
}

// loadFile 读取 YAML 文件，文件不存在时保留默认值。
func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

func (l *Loader) applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			if err := l.applyEnv(field); err != nil {
				return err
			}
			continue
		}

		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		name := l.envPrefix + tag
		value, ok := l.lookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Set 按点分路径设置配置项，路径段使用 YAML 字段名。
func (c *Config) Set(path, value string) error {
	v := reflect.ValueOf(c).Elem()
	parts := strings.Split(path, ".")

	for i, part := range parts {
		field, ok := fieldByYAMLName(v, part)
		if !ok {
			return fmt.Errorf("未知的配置路径: %s", path)
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return fmt.Errorf("配置路径 %s 不是叶子节点", path)
			}
			if err := setField(field, value); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		}
		if field.Kind() != reflect.Struct {
			return fmt.Errorf("未知的配置路径: %s", path)
		}
		v = field
	}
	return nil
}

func fieldByYAMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值 %q", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式 %q", value)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("无效的整数 %q", value)
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}
	return nil
}

// Serialize 把配置序列化为 YAML。
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig 从 YAML 解析配置，未出现的字段取默认值。
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// Clone 返回配置的副本。
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
