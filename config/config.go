package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	Port          int  `koanf:"port"`
	Debug         bool `koanf:"debug"`
	MaxUploadSize int  `koanf:"maxuploadsize"` // in bytes
}

// ModelConfig points at the classifier artifact and its metadata
type ModelConfig struct {
	Path          string `koanf:"path"`
	Metadata      string `koanf:"metadata"`
	SharedLibrary string `koanf:"sharedlibrary"`
}

// ExemplarConfig locates the fixed catalog of example photographs
type ExemplarConfig struct {
	Dir string `koanf:"dir"`
}

// StagingConfig selects the backend of the selected-image slot
type StagingConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	Redis   struct {
		Addr string `koanf:"addr"`
		Key  string `koanf:"key"`
	} `koanf:"redis"`
}

// AppConfig defines
type AppConfig struct {
	Server    ServerConfig   `koanf:"server"`
	Model     ModelConfig    `koanf:"model"`
	Exemplars ExemplarConfig `koanf:"exemplars"`
	Staging   StagingConfig  `koanf:"staging"`
}

// Staging backends
const (
	StagingMemory = "memory"
	StagingFile   = "file"
	StagingRedis  = "redis"
)

// Config - Global variable to export
var Config AppConfig

var defaults = map[string]any{
	"server.port":          8080,
	"server.maxuploadsize": 10 << 20,
	"model.path":           "models/model.onnx",
	"model.metadata":       "models/model_metadata.json",
	"exemplars.dir":        "example_images",
	"staging.backend":      StagingFile,
	"staging.path":         "selected_image.jpg",
	"staging.redis.addr":   "localhost:6379",
	"staging.redis.key":    "staging:selected_image",
}

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return err
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", filePath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		return key, v
	}), nil); err != nil {
		return err
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return err
	}

	Config = cfg
	return nil
}

// ValidateConfig rejects configurations the server cannot start with
func ValidateConfig(cfg *AppConfig) error {
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server.maxuploadsize must be positive, got %d", cfg.Server.MaxUploadSize)
	}
	if cfg.Model.Path == "" || cfg.Model.Metadata == "" {
		return fmt.Errorf("model.path and model.metadata are required")
	}
	switch cfg.Staging.Backend {
	case StagingMemory:
	case StagingFile:
		if cfg.Staging.Path == "" {
			return fmt.Errorf("staging.path is required for the file backend")
		}
	case StagingRedis:
		if cfg.Staging.Redis.Addr == "" || cfg.Staging.Redis.Key == "" {
			return fmt.Errorf("staging.redis.addr and staging.redis.key are required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown staging.backend %q", cfg.Staging.Backend)
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	_ = fs.Parse(os.Args[1:])

	return *configPath
}
