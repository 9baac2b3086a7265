// Package config loads the miner configuration from flags, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/djkazic/ducominer/internal/identity"
	"github.com/djkazic/ducominer/internal/pacer"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. DUCO_USER.
const EnvPrefix = "DUCO"

// AutoRigID requests a rig identifier derived from the device identity.
const AutoRigID = "auto"

const (
	DefaultVersion   = "4.3"
	DefaultStartDiff = "ESP32"
	DefaultBanner    = "Official ESP32 Miner"
	DefaultPoolURL   = "https://server.duinocoin.com/getPool"
	DefaultCores     = 2
	DefaultLogLevel  = "info"

	// maxWalletID bounds the random wallet identifier, as the firmware does.
	maxWalletID = 2811
)

// Keys shared by flags, viper and the environment.
const (
	KeyHost          = "host"
	KeyPort          = "port"
	KeyUser          = "user"
	KeyRigID         = "rig-id"
	KeyMinerKey      = "miner-key"
	KeyVersion       = "version"
	KeyStartDiff     = "start-diff"
	KeyWalletID      = "wallet-id"
	KeyBanner        = "banner"
	KeyPoolURL       = "pool-url"
	KeyCores         = "cores"
	KeyYieldInterval = "yield-interval"
	KeyMetricsAddr   = "metrics-addr"
	KeyLogLevel      = "log-level"
	KeyLinkInterface = "link-interface"
	KeyPinCores      = "pin-cores"
)

// Config is set once at startup and read-only once workers run. RigID is the
// only field rewritten after loading, by ResolveRigID.
type Config struct {
	Host      string
	Port      int
	User      string
	RigID     string
	MinerKey  string
	Version   string
	StartDiff string
	WalletID  string
	Banner    string

	// PoolURL locates a coordinator when Host is empty.
	PoolURL string

	Cores         int
	YieldInterval time.Duration
	MetricsAddr   string
	LogLevel      string
	LinkInterface string
	PinCores      bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRigID, AutoRigID)
	v.SetDefault(KeyVersion, DefaultVersion)
	v.SetDefault(KeyStartDiff, DefaultStartDiff)
	v.SetDefault(KeyBanner, DefaultBanner)
	v.SetDefault(KeyPoolURL, DefaultPoolURL)
	v.SetDefault(KeyCores, DefaultCores)
	v.SetDefault(KeyYieldInterval, pacer.DefaultInterval)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyPinCores, true)
}

// BindEnv makes v read DUCO_* environment variables for every key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from v and validates it. A missing wallet identifier
// is replaced by a random one.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:          v.GetString(KeyHost),
		Port:          v.GetInt(KeyPort),
		User:          v.GetString(KeyUser),
		RigID:         v.GetString(KeyRigID),
		MinerKey:      v.GetString(KeyMinerKey),
		Version:       v.GetString(KeyVersion),
		StartDiff:     v.GetString(KeyStartDiff),
		WalletID:      v.GetString(KeyWalletID),
		Banner:        v.GetString(KeyBanner),
		PoolURL:       v.GetString(KeyPoolURL),
		Cores:         v.GetInt(KeyCores),
		YieldInterval: v.GetDuration(KeyYieldInterval),
		MetricsAddr:   v.GetString(KeyMetricsAddr),
		LogLevel:      v.GetString(KeyLogLevel),
		LinkInterface: v.GetString(KeyLinkInterface),
		PinCores:      v.GetBool(KeyPinCores),
	}

	if cfg.WalletID == "" {
		cfg.WalletID = strconv.Itoa(rand.IntN(maxWalletID + 1))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields a round cannot run without.
func (c *Config) Validate() error {
	if c.User == "" {
		return fmt.Errorf("%s is required", KeyUser)
	}
	if c.Host == "" && c.PoolURL == "" {
		return fmt.Errorf("either %s or %s is required", KeyHost, KeyPoolURL)
	}
	if c.Host != "" && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("invalid %s %d", KeyPort, c.Port)
	}
	if c.Cores < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyCores, c.Cores)
	}
	if c.YieldInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %v", KeyYieldInterval, c.YieldInterval)
	}
	return nil
}

// ResolveRigID replaces an "auto" rig identifier with one derived from
// deviceID. It must run before any worker starts.
func (c *Config) ResolveRigID(deviceID string) {
	if strings.EqualFold(c.RigID, AutoRigID) {
		c.RigID = identity.RigName(deviceID)
	}
}
