package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DUCO_USER", "alice")
	t.Setenv("DUCO_HOST", "127.0.0.1")
	t.Setenv("DUCO_PORT", "2813")
	t.Setenv("DUCO_MINER_KEY", "secret")
	t.Setenv("DUCO_WALLET_ID", "77")
	t.Setenv("DUCO_YIELD_INTERVAL", "250ms")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	require.Equal(t, "alice", cfg.User)
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.Equal(t, 2813, cfg.Port)
	require.Equal(t, "secret", cfg.MinerKey)
	require.Equal(t, "77", cfg.WalletID)
	require.Equal(t, 250*time.Millisecond, cfg.YieldInterval)
	require.Equal(t, DefaultStartDiff, cfg.StartDiff)
	require.Equal(t, DefaultCores, cfg.Cores)
	require.Equal(t, AutoRigID, cfg.RigID)
}

func TestLoad_RandomWallet(t *testing.T) {
	t.Setenv("DUCO_USER", "alice")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	id, err := strconv.Atoi(cfg.WalletID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, id, 0)
	require.LessOrEqual(t, id, maxWalletID)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{User: "u", Host: "h", Port: 1, Cores: 2, YieldInterval: time.Millisecond}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no user", func(c *Config) { c.User = "" }},
		{"no host or pool", func(c *Config) { c.Host = ""; c.PoolURL = "" }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
		{"zero cores", func(c *Config) { c.Cores = 0 }},
		{"zero yield", func(c *Config) { c.YieldInterval = 0 }},
	}

	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestResolveRigID(t *testing.T) {
	for _, rig := range []string{"auto", "Auto", "AUTO"} {
		c := &Config{RigID: rig}
		c.ResolveRigID("ABCDEF")
		require.Equal(t, strings.ToUpper(runtime.GOOS)+"-ABCDEF", c.RigID)
	}

	c := &Config{RigID: "my-rig"}
	c.ResolveRigID("ABCDEF")
	require.Equal(t, "my-rig", c.RigID)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DUCO_TEST_DOTENV=from-file\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("DUCO_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "from-file", os.Getenv("DUCO_TEST_DOTENV"))
}
