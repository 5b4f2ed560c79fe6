package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	appdefaults "github.com/omnitalk/stream-bridge/config"

	"github.com/omnitalk/stream-bridge/internal/logger"
	"github.com/spf13/viper"
)

// SystemConfig represents a systemConfig.
type SystemConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TranscribeConfig holds the audio recognition endpoint settings.
type TranscribeConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Channels       int    `mapstructure:"channels"`
	Punctuate      bool   `mapstructure:"punctuate"`
	Diarize        bool   `mapstructure:"diarize"`
	InterimResults bool   `mapstructure:"interim_results"`
}

// GestureConfig holds the gesture recognition endpoint settings.
type GestureConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	Language             string `mapstructure:"language"`
	TargetFPS            int    `mapstructure:"target_fps"`
	MaxQueueLength       int    `mapstructure:"max_queue_length"`
	UseBinaryFrames      bool   `mapstructure:"use_binary_frames"`
	ReconnectBaseDelayMs int    `mapstructure:"reconnect_base_delay_ms"`
	MaxReconnectAttempts int    `mapstructure:"max_reconnect_attempts"`
}

// SignalingConfig holds the room signaling endpoint settings.
type SignalingConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	HeartbeatIntervalMs  int    `mapstructure:"heartbeat_interval_ms"`
	ReconnectBaseDelayMs int    `mapstructure:"reconnect_base_delay_ms"`
	MaxReconnectAttempts int    `mapstructure:"max_reconnect_attempts"`
}

// Config represents a config.
type Config struct {
	RootDir      string           `mapstructure:"-"`
	HTTPAddr     string           `mapstructure:"http_addr"`
	Transcribe   TranscribeConfig `mapstructure:"transcribe"`
	Gesture      GestureConfig    `mapstructure:"gesture"`
	Signaling    SignalingConfig  `mapstructure:"signaling"`
	RoomsFile    string           `mapstructure:"rooms_file"`
	TLSCertPath  string           `mapstructure:"tls_cert_path"`
	TLSKeyPath   string           `mapstructure:"tls_key_path"`
	SystemConfig SystemConfig     `mapstructure:"system_config"`
	Log          logger.Config    `mapstructure:"log"`
}

// Load executes the load function.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v := newViper()
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return finish(v, rootDir)
}

// LoadConfig executes the loadConfig function.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("OMNI_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	return finish(v, rootDir)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("http_addr", "")
	v.SetDefault("transcribe.model", "nova-2")
	v.SetDefault("transcribe.language", "en")
	v.SetDefault("transcribe.sample_rate", 16000)
	v.SetDefault("transcribe.channels", 1)
	v.SetDefault("transcribe.punctuate", true)
	v.SetDefault("transcribe.diarize", true)
	v.SetDefault("transcribe.interim_results", true)
	v.SetDefault("gesture.language", "ASL")
	v.SetDefault("gesture.target_fps", 15)
	v.SetDefault("gesture.max_queue_length", 30)
	v.SetDefault("gesture.use_binary_frames", true)
	v.SetDefault("gesture.reconnect_base_delay_ms", 1000)
	v.SetDefault("gesture.max_reconnect_attempts", 5)
	v.SetDefault("signaling.heartbeat_interval_ms", 15000)
	v.SetDefault("signaling.reconnect_base_delay_ms", 2000)
	v.SetDefault("signaling.max_reconnect_attempts", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "stream-bridge.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetEnvPrefix("omni")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func finish(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	deriveHTTPAddr(&cfg)
	derivePaths(&cfg)

	return cfg, nil
}

func deriveHTTPAddr(cfg *Config) {
	if cfg.HTTPAddr != "" {
		return
	}
	host := cfg.SystemConfig.Host
	port := cfg.SystemConfig.Port
	if port == 0 {
		port = 8210
	}
	if host == "" {
		cfg.HTTPAddr = fmt.Sprintf(":%d", port)
		return
	}
	cfg.HTTPAddr = net.JoinHostPort(host, strconv.Itoa(port))
}

func derivePaths(cfg *Config) {
	cfg.RoomsFile = resolvePath(cfg.RootDir, cfg.RoomsFile, "")
	cfg.TLSCertPath = resolvePath(cfg.RootDir, cfg.TLSCertPath, "")
	cfg.TLSKeyPath = resolvePath(cfg.RootDir, cfg.TLSKeyPath, "")
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("OMNI_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
