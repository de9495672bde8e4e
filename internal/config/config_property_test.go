package config

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConfigRoundTripProperty: ParseConfig(Serialize(cfg)) == cfg
func TestConfigRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("config round-trip preserves data", prop.ForAll(
		func(cfg *Config) bool {
			data, err := cfg.Serialize()
			if err != nil {
				return false
			}
			parsed, err := ParseConfig(data)
			if err != nil {
				return false
			}
			return *cfg == *parsed
		},
		genConfig(),
	))

	properties.TestingRun(t)
}

func genConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("127.0.0.1", "0.0.0.0", "localhost"),
		gen.IntRange(1024, 60000),
		gen.IntRange(0, 32),
		gen.OneConstOf("ws", "mem", "grpc"),
		gen.IntRange(1, 4096),
		gen.IntRange(0, 60),
		gen.Bool(),
		gen.AlphaString(),
		gen.OneConstOf("debug", "info", "warn", "error"),
	).Map(func(values []interface{}) *Config {
		cfg := DefaultConfig()
		cfg.Topology = TopologyConfig{
			Host:     values[0].(string),
			BasePort: values[1].(int),
			Slaves:   values[2].(int),
		}
		cfg.Transport.Kind = values[3].(string)
		cfg.Transport.SendBuffer = values[4].(int)
		cfg.Transport.SendTimeout = time.Duration(values[5].(int)) * time.Second
		cfg.Tasks.AutoDiscover = values[6].(bool)
		cfg.Tasks.ScriptDir = values[7].(string)
		cfg.Logging.Level = values[8].(string)
		return cfg
	})
}

// TestOverrideProperty: 任意合法的 topology 覆盖项都能通过点分路径写入并通过校验。
func TestOverrideProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		slaves := rapid.IntRange(0, 100).Draw(t, "slaves")
		base := rapid.IntRange(1, maxPort-slaves).Draw(t, "base")

		cfg, err := NewLoader().WithOverrides(map[string]string{
			"topology.slaves":    strconv.Itoa(slaves),
			"topology.base_port": strconv.Itoa(base),
		}).Load()
		require.NoError(t, err)
		require.Equal(t, slaves, cfg.Topology.Slaves)
		require.Equal(t, base, cfg.Topology.BasePort)
		require.NoError(t, cfg.Validate())
	})
}
