package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "dozemate", cfg.Database.Database)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "mqtt://localhost:1883", cfg.MQTT.Broker)
	require.Equal(t, byte(1), cfg.MQTT.QoS)
	require.Equal(t, ":8080", cfg.HTTP.Address)
	require.Equal(t, "vitals:data:stream", cfg.Vitals.Stream)
	require.Equal(t, 300, cfg.Vitals.DeviceCacheTTL)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("HTTP_ADDRESS", ":9090")
	t.Setenv("VITALS_RULES_FILE", "/etc/dozemate/rules.json")
	t.Setenv("VENDOR_HTTP_ADDRESS", "https://vendor.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 6432, cfg.Database.Port)
	require.Equal(t, ":9090", cfg.HTTP.Address)
	require.Equal(t, "/etc/dozemate/rules.json", cfg.Vitals.RulesFile)
	require.Equal(t, "https://vendor.example.com", cfg.Vendor.BaseURL)
}

func TestGetDSN(t *testing.T) {
	c := config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "secret", Database: "dozemate", SSLMode: "disable",
	}
	require.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=dozemate sslmode=disable",
		c.GetDSN())
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 5432, cfg.Database.Port)
}
