package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/facebookgo/atomicfile"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Default locations and knobs. Paths live under the user profile so the
// service works from any install directory.
const (
	DefaultConfigDir  = "~/.netsentry"
	DefaultConfigFile = "config.yaml"
	DefaultDBFile     = "netsentry.db"

	DefaultCheckURL    = "http://connectivitycheck.gstatic.com/generate_204"
	DefaultVPNPath     = "otherapps/psiphon3.exe"
	DefaultUIImage     = "psiphon3.exe"
	DefaultTunnelImage = "psiphon-tunnel-core.exe"
)

// WifiConfig selects the target network.
type WifiConfig struct {
	// SSID is the preferred network. Empty means auto-select from the
	// profile store against a live scan.
	SSID string `yaml:"ssid,omitempty"`
}

// AutoConfig drives timer-based reconciliation.
type AutoConfig struct {
	// UseVPN controls the desired VPN posture (default true).
	UseVPN *bool `yaml:"use_vpn,omitempty"`
	// Interval between passes, e.g. "20s" (default 20s).
	Interval string `yaml:"interval,omitempty"`
	// PostConnectWait is the pause after a corrective Wi-Fi connect
	// before rechecking, e.g. "3s" (default 3s).
	PostConnectWait string `yaml:"post_connect_wait,omitempty"`
}

// VPNEnabled reports the desired posture, defaulting to true.
func (c AutoConfig) VPNEnabled() bool {
	return c.UseVPN == nil || *c.UseVPN
}

// IntervalDuration returns the parsed interval with its default.
func (c AutoConfig) IntervalDuration() time.Duration {
	return parseDuration(c.Interval, 20*time.Second)
}

// PostConnectWaitDuration returns the parsed wait with its default.
func (c AutoConfig) PostConnectWaitDuration() time.Duration {
	return parseDuration(c.PostConnectWait, 3*time.Second)
}

// VPNConfig describes the external VPN client.
type VPNConfig struct {
	// ClientPath is the executable to launch, absolute or relative to
	// the service binary.
	ClientPath string `yaml:"client_path,omitempty"`
	// UIImage is the client frontend's process image name.
	UIImage string `yaml:"ui_image,omitempty"`
	// TunnelImage is the tunnel core's process image name.
	TunnelImage string `yaml:"tunnel_image,omitempty"`
}

// ClientPathOrDefault returns the configured path or the default.
func (c VPNConfig) ClientPathOrDefault() string {
	if c.ClientPath != "" {
		return c.ClientPath
	}
	return DefaultVPNPath
}

// UIImageOrDefault returns the configured UI image name or the default.
func (c VPNConfig) UIImageOrDefault() string {
	if c.UIImage != "" {
		return c.UIImage
	}
	return DefaultUIImage
}

// TunnelImageOrDefault returns the configured tunnel image name or the default.
func (c VPNConfig) TunnelImageOrDefault() string {
	if c.TunnelImage != "" {
		return c.TunnelImage
	}
	return DefaultTunnelImage
}

// ProbeConfig tunes the system probe.
type ProbeConfig struct {
	// CheckURL must answer 204 with no body when the internet works.
	CheckURL string `yaml:"check_url,omitempty"`
	// CheckTimeout bounds the reachability request, e.g. "5s" (default 5s).
	CheckTimeout string `yaml:"check_timeout,omitempty"`
	// Settle waits between a mutation and its reverification.
	ConnectSettle    string `yaml:"connect_settle,omitempty"`    // default 5s
	DisconnectSettle string `yaml:"disconnect_settle,omitempty"` // default 2s
	VPNStartSettle   string `yaml:"vpn_start_settle,omitempty"`  // default 5s
	VPNStopSettle    string `yaml:"vpn_stop_settle,omitempty"`   // default 2s
}

// CheckURLOrDefault returns the configured URL or the default endpoint.
func (c ProbeConfig) CheckURLOrDefault() string {
	if c.CheckURL != "" {
		return c.CheckURL
	}
	return DefaultCheckURL
}

// CheckTimeoutDuration returns the parsed timeout with its default.
func (c ProbeConfig) CheckTimeoutDuration() time.Duration {
	return parseDuration(c.CheckTimeout, 5*time.Second)
}

// ConnectSettleDuration returns the parsed wait with its default.
func (c ProbeConfig) ConnectSettleDuration() time.Duration {
	return parseDuration(c.ConnectSettle, 5*time.Second)
}

// DisconnectSettleDuration returns the parsed wait with its default.
func (c ProbeConfig) DisconnectSettleDuration() time.Duration {
	return parseDuration(c.DisconnectSettle, 2*time.Second)
}

// VPNStartSettleDuration returns the parsed wait with its default.
func (c ProbeConfig) VPNStartSettleDuration() time.Duration {
	return parseDuration(c.VPNStartSettle, 5*time.Second)
}

// VPNStopSettleDuration returns the parsed wait with its default.
func (c ProbeConfig) VPNStopSettleDuration() time.Duration {
	return parseDuration(c.VPNStopSettle, 2*time.Second)
}

// MonitorConfig tunes the tunnel monitor.
type MonitorConfig struct {
	// Interval between samples, e.g. "1s" (default 1s).
	Interval string `yaml:"interval,omitempty"`
}

// IntervalDuration returns the parsed interval with its default.
func (c MonitorConfig) IntervalDuration() time.Duration {
	return parseDuration(c.Interval, time.Second)
}

// DatabaseConfig locates the profile store.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// NotificationsConfig toggles desktop toasts.
type NotificationsConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// NotifyEnabled reports whether toasts are on, defaulting to true.
func (c NotificationsConfig) NotifyEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Config is the top-level application configuration.
type Config struct {
	// Version is the schema version; Load migrates older files in
	// place.
	Version int `yaml:"version,omitempty"`

	Wifi          WifiConfig          `yaml:"wifi,omitempty"`
	Auto          AutoConfig          `yaml:"auto,omitempty"`
	VPN           VPNConfig           `yaml:"vpn,omitempty"`
	Probe         ProbeConfig         `yaml:"probe,omitempty"`
	Monitor       MonitorConfig       `yaml:"monitor,omitempty"`
	Database      DatabaseConfig      `yaml:"database,omitempty"`
	Logging       LogConfig           `yaml:"logging,omitempty"`
	Notifications NotificationsConfig `yaml:"notifications,omitempty"`
}

// DefaultConfigPath expands the per-user config file location.
func DefaultConfigPath() (string, error) {
	dir, err := homedir.Expand(DefaultConfigDir)
	if err != nil {
		return "", fmt.Errorf("expand config dir: %w", err)
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// DatabasePath resolves the profile store path, defaulting next to the
// config file.
func (c Config) DatabasePath(configPath string) (string, error) {
	if c.Database.Path != "" {
		return homedir.Expand(c.Database.Path)
	}
	return filepath.Join(filepath.Dir(configPath), DefaultDBFile), nil
}

// LogFilePath expands the optional log file path; empty means file
// logging is off.
func (c Config) LogFilePath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	return homedir.Expand(c.Logging.File)
}

// ConfigManager handles loading, saving, and replacing configuration.
type ConfigManager struct {
	mu       sync.RWMutex
	config   Config
	filePath string
	bus      *EventBus
	log      *Logger
}

// NewConfigManager creates a config manager that reads from the given file.
func NewConfigManager(filePath string, bus *EventBus, log *Logger) *ConfigManager {
	return &ConfigManager{
		filePath: filePath,
		bus:      bus,
		log:      log,
	}
}

// defaultConfig returns an empty but valid configuration; accessors
// supply every default.
func defaultConfig() Config {
	return Config{Version: CurrentConfigVersion}
}

// Path returns the backing file path.
func (cm *ConfigManager) Path() string {
	return cm.filePath
}

// Load reads and parses the configuration from disk.
// If the config file does not exist, it creates one with default values.
func (cm *ConfigManager) Load() error {
	data, err := os.ReadFile(cm.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			if cm.log != nil {
				cm.log.Infof("Core", "Config %s not found, creating default config", cm.filePath)
			}
			cm.mu.Lock()
			cm.config = defaultConfig()
			cm.mu.Unlock()
			if saveErr := cm.Save(); saveErr != nil {
				return fmt.Errorf("create default config: %w", saveErr)
			}
			return nil
		}
		return fmt.Errorf("read config %s: %w", cm.filePath, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	version, migrated, err := migrateConfig(raw)
	if err != nil {
		return err
	}
	if migrated {
		if cm.log != nil {
			cm.log.Infof("Core", "Migrated config to schema v%d", version)
		}
		if data, err = yaml.Marshal(raw); err != nil {
			return fmt.Errorf("marshal migrated config: %w", err)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()

	if migrated {
		if err := cm.Save(); err != nil {
			return fmt.Errorf("persist migrated config: %w", err)
		}
	}
	return nil
}

// Save writes the current configuration to disk atomically, so a crash
// mid-write never leaves a truncated file behind.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	data, err := yaml.Marshal(&cm.config)
	cm.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cm.filePath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := atomicfile.New(cm.filePath, 0644)
	if err != nil {
		return fmt.Errorf("open config %s: %w", cm.filePath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return fmt.Errorf("write config %s: %w", cm.filePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("commit config %s: %w", cm.filePath, err)
	}

	return nil
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Set replaces the configuration, persists it, and publishes
// EventConfigSaved.
func (cm *ConfigManager) Set(cfg Config) error {
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()

	if err := cm.Save(); err != nil {
		return err
	}
	if cm.bus != nil {
		cm.bus.Publish(Event{Type: EventConfigSaved, Payload: ConfigSavedPayload{Config: cfg}})
	}
	return nil
}

// parseDuration parses a duration string, falling back to def for empty
// or malformed values.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
