package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: test
source:
  type: http
  tool_url: http://tools.local/call
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	require.Equal(t, 8080, c.Server.Port)
	require.Equal(t, []string{"*"}, c.Server.CORSOrigins)
	require.Equal(t, 1800*time.Second, c.Refresh.Interval)
	require.Equal(t, 5*time.Second, c.Refresh.InitialWait)
	require.Equal(t, "1m", c.Market.DefaultTimeframe)
	require.Equal(t, "memory", c.Cache.Type)
	require.Equal(t, "get_intraday_ticks", c.Source.ToolName)
	require.Equal(t, "rt_ticks_raw", c.ClickHouse.Table)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing environment":   "source:\n  type: http\n  tool_url: x\n",
		"unknown source":        "environment: t\nsource:\n  type: ftp\n",
		"http without url":      "environment: t\nsource:\n  type: http\n",
		"clickhouse no host":    "environment: t\nsource:\n  type: clickhouse\n",
		"redis without addr":    "environment: t\nsource:\n  type: http\n  tool_url: x\ncache:\n  type: redis\n",
		"kafka without brokers": "environment: t\nsource:\n  type: http\n  tool_url: x\nkafka:\n  enabled: true\n",
		"interval too short":    "environment: t\nsource:\n  type: http\n  tool_url: x\nrefresh:\n  interval: 100ms\n",
	}
	for name, y := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(y))
			require.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	t.Setenv("TICKCHART_SYMBOL", "005930")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	require.Equal(t, "005930", c.Market.Identifier)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	require.Equal(t, "debug", c.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
