package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "NIMBUS_"

// AppConfig holds the browser core configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log LoggingConfig `koanf:"log"`

	// Private starts an incognito session: no offline cache, no remote viewers.
	Private bool `koanf:"private"`

	Filter    FilterConfig    `koanf:"filter"`
	Cache     CacheConfig     `koanf:"cache"`
	Viewers   ViewersConfig   `koanf:"viewers"`
	Downloads DownloadsConfig `koanf:"downloads"`
	Network   NetworkConfig   `koanf:"network"`
}

type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

type FilterConfig struct {
	// Enabled turns request filtering on. When off every request is allowed.
	Enabled bool `koanf:"enabled"`
	// Bundled is the list shipped with the browser; empty means none.
	Bundled string `koanf:"bundled"`
	// Directory holds user-supplied lists; every regular file is loaded.
	Directory string `koanf:"directory" validate:"required_if=Enabled true"`
	// Watch reloads the lists when Directory changes.
	Watch bool `koanf:"watch"`
	// CacheSize bounds the per-set decision cache; 0 disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`
	// FPRate is the false-positive target of the host pre-check.
	FPRate float64 `koanf:"fp_rate" validate:"gt=0,lt=1"`
}

type CacheConfig struct {
	Enabled bool `koanf:"enabled"`
	// Backend selects the persistent store: one file per page, or a bbolt db.
	Backend   string `koanf:"backend" validate:"required,oneof=file bolt"`
	Directory string `koanf:"directory" validate:"required_if=Enabled true"`
	// MemorySize bounds the in-memory tier in pages; 0 disables it.
	MemorySize int `koanf:"memory_size" validate:"gte=0"`
}

type ViewersConfig struct {
	Enabled bool `koanf:"enabled"`
	// File optionally replaces the built-in viewers (YAML, JSON or TOML).
	File string `koanf:"file" validate:"omitempty,viewer_file"`
}

type DownloadsConfig struct {
	Directory string `koanf:"directory" validate:"required"`
}

type NetworkConfig struct {
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	UserAgent string        `koanf:"user_agent" validate:"required"`
	// Probe is an optional host:port used to confirm the network is reachable.
	Probe string `koanf:"probe" validate:"omitempty,hostname_port"`
}

// envKeys maps environment variable names (without the prefix) to config
// paths. Variables not listed are ignored.
var envKeys = map[string]string{
	"ENV":                "env",
	"LOG_LEVEL":          "log.level",
	"PRIVATE":            "private",
	"FILTER_ENABLED":     "filter.enabled",
	"FILTER_BUNDLED":     "filter.bundled",
	"FILTER_DIR":         "filter.directory",
	"FILTER_WATCH":       "filter.watch",
	"FILTER_CACHE_SIZE":  "filter.cache_size",
	"FILTER_FP_RATE":     "filter.fp_rate",
	"CACHE_ENABLED":      "cache.enabled",
	"CACHE_BACKEND":      "cache.backend",
	"CACHE_DIR":          "cache.directory",
	"CACHE_MEMORY_SIZE":  "cache.memory_size",
	"VIEWERS_ENABLED":    "viewers.enabled",
	"VIEWERS_FILE":       "viewers.file",
	"DOWNLOADS_DIR":      "downloads.directory",
	"NETWORK_TIMEOUT":    "network.timeout",
	"NETWORK_USER_AGENT": "network.user_agent",
	"NETWORK_PROBE":      "network.probe",
}

// dataDir returns the per-user directory nimbus keeps its state in.
func dataDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "nimbus")
	}
	return filepath.Join(os.TempDir(), "nimbus")
}

func downloadDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, "Downloads")
	}
	return os.TempDir()
}

// DEFAULT_APP_CONFIG defines the default application configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Filter: FilterConfig{
		Enabled:   true,
		Bundled:   filepath.Join(dataDir(), "easylist.txt"),
		Directory: filepath.Join(dataDir(), "adblock"),
		Watch:     false,
		CacheSize: 4096,
		FPRate:    0.01,
	},
	Cache: CacheConfig{
		Enabled:    true,
		Backend:    "file",
		Directory:  filepath.Join(dataDir(), "offlinecache"),
		MemorySize: 64,
	},
	Viewers: ViewersConfig{Enabled: true},
	Downloads: DownloadsConfig{
		Directory: downloadDir(),
	},
	Network: NetworkConfig{
		Timeout:   30 * time.Second,
		UserAgent: "Nimbus/1.0",
	},
}

// validViewerFile accepts paths with an extension the viewer loader parses.
func validViewerFile(fl validator.FieldLevel) bool {
	switch strings.ToLower(filepath.Ext(fl.Field().String())) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	default:
		return false
	}
}

// envLoader loads NIMBUS_* variables, mapping each through envKeys. It can
// be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envKeys[strings.TrimPrefix(key, envPrefix)]
			if !ok {
				return "", nil
			}
			return path, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "viewer_file" validation.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("viewer_file", validViewerFile)
}

// Load builds the configuration from defaults and NIMBUS_* environment
// variables, then validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}
