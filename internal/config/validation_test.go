package config

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty host", func(c *Config) { c.Topology.Host = "" }, "topology.host"},
		{"negative slaves", func(c *Config) { c.Topology.Slaves = -1 }, "topology.slaves"},
		{"port zero", func(c *Config) { c.Topology.BasePort = 0 }, "topology.base_port"},
		{"port too large", func(c *Config) { c.Topology.BasePort = 70000 }, "topology.base_port"},
		{"slaves overflow ports", func(c *Config) { c.Topology.BasePort = 65530; c.Topology.Slaves = 10 }, "topology.base_port"},
		{"huge slave count", func(c *Config) { c.Topology.Slaves = math.MaxInt }, "topology.base_port"},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "zmq" }, "transport.kind"},
		{"zero send buffer", func(c *Config) { c.Transport.SendBuffer = 0 }, "transport.send_buffer"},
		{"negative send timeout", func(c *Config) { c.Transport.SendTimeout = -1 }, "transport.send_timeout"},
		{"zero dial timeout", func(c *Config) { c.Transport.DialTimeout = 0 }, "transport.dial_timeout"},
		{"zero script timeout", func(c *Config) { c.Tasks.ScriptTimeout = 0 }, "tasks.script_timeout"},
		{"bad status address", func(c *Config) { c.Status.Enabled = true; c.Status.Address = "nowhere" }, "status.address"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.True(t, verrs.Has(tt.field), "expected error on %s, got %v", tt.field, verrs)
		})
	}
}

func TestValidate_AcceptsEdgeValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Topology.BasePort = 65530
	cfg.Topology.Slaves = 5
	cfg.Transport.Kind = "mem"
	cfg.Transport.SendTimeout = 0
	cfg.Status.Enabled = true
	cfg.Status.Address = "127.0.0.1:9190"
	cfg.Logging.Output = "both"
	cfg.Logging.FilePath = "/tmp/taskqueue.log"

	assert.NoError(t, cfg.Validate())

	cfg.Transport.Kind = "grpc"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Topology.Host = ""
	cfg.Transport.Kind = "carrier-pigeon"
	cfg.Logging.Level = ""

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "transport.kind")
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, "topology:\n  slaves: -2\n")

	_, err := LoadAndValidate(path)
	assert.Error(t, err)

	cfg, err := LoadAndValidate("/nonexistent/taskqueue.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, isValidAddress(":9190"))
	assert.True(t, isValidAddress("0.0.0.0:80"))
	assert.True(t, isValidAddress("localhost:http"))
	assert.False(t, isValidAddress(""))
	assert.False(t, isValidAddress("9190"))
	assert.False(t, isValidAddress("host:"))
}
