package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all configuration for the toolkit.
type Config struct {
	Simulators  SimulatorsConfig
	Directories DirectoriesConfig
	Run         RunConfig
	Database    DatabaseConfig
	S3          S3Config
	Server      ServerConfig
}

// SimulatorsConfig holds the external simulator commands. Each entry is the
// command name or absolute path plus fixed arguments; the input file name is
// appended per run.
type SimulatorsConfig struct {
	Ngspice CommandConfig
	Xyce    CommandConfig
	Hdev    CommandConfig
	OpenVAF CommandConfig
}

// CommandConfig is one external command.
type CommandConfig struct {
	Command string
	Args    []string
}

// DirectoriesConfig holds the working directories.
type DirectoriesConfig struct {
	Simulations string
	Database    string
}

// RunConfig holds the simulation controller settings.
type RunConfig struct {
	NCore   int
	Timeout time.Duration
}

// DatabaseConfig holds the run-ledger database configuration.
type DatabaseConfig struct {
	URL string
}

// S3Config holds the result-archive storage configuration.
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// ServerConfig holds the HTTP run-service configuration.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// Load resolves the configuration: built-in defaults, then the user file
// (~/.config/dmkit/dmkit.yaml), then a workspace file (./dmkit.yaml), then
// environment variables with the DMKIT_ prefix. Later sources win.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("simulators.ngspice.command", "ngspice")
	v.SetDefault("simulators.ngspice.args", []string{"-b"})
	v.SetDefault("simulators.xyce.command", "Xyce")
	v.SetDefault("simulators.xyce.args", []string{})
	v.SetDefault("simulators.hdev.command", "hdev")
	v.SetDefault("simulators.hdev.args", []string{})
	v.SetDefault("simulators.openvaf.command", "openvaf")
	v.SetDefault("simulators.openvaf.args", []string{})
	v.SetDefault("directories.simulations", "~/.dmkit/simulations")
	v.SetDefault("directories.database", "~/.dmkit/database")
	v.SetDefault("run.ncore", runtime.NumCPU())
	v.SetDefault("run.timeout", "30s")
	v.SetDefault("database.url", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", "http://localhost:5173")

	v.SetConfigName("dmkit")
	v.SetConfigType("yaml")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "dmkit"))
	}
	// Read user config (ignore error - file may not exist)
	_ = v.ReadInConfig()

	// Workspace file overrides the user file
	local := viper.New()
	local.SetConfigFile("dmkit.yaml")
	if err := local.ReadInConfig(); err == nil {
		for _, key := range local.AllKeys() {
			v.Set(key, local.Get(key))
		}
	}

	v.SetEnvPrefix("DMKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	config.Simulators.Ngspice = commandFrom(v, "simulators.ngspice")
	config.Simulators.Xyce = commandFrom(v, "simulators.xyce")
	config.Simulators.Hdev = commandFrom(v, "simulators.hdev")
	config.Simulators.OpenVAF = commandFrom(v, "simulators.openvaf")
	config.Directories.Simulations = expandHome(v.GetString("directories.simulations"))
	config.Directories.Database = expandHome(v.GetString("directories.database"))
	config.Run.NCore = v.GetInt("run.ncore")
	config.Run.Timeout = v.GetDuration("run.timeout")
	config.Database.URL = v.GetString("database.url")
	config.S3.Bucket = v.GetString("s3.bucket")
	config.S3.Endpoint = v.GetString("s3.endpoint")
	config.S3.Region = v.GetString("s3.region")
	config.S3.AccessKey = v.GetString("s3.access_key")
	config.S3.SecretKey = v.GetString("s3.secret_key")
	config.Server.Port = v.GetString("server.port")
	config.Server.AllowedOrigins = strings.Split(v.GetString("server.allowed_origins"), ",")

	log.Debug().
		Str("simulations", config.Directories.Simulations).
		Str("database", config.Directories.Database).
		Int("ncore", config.Run.NCore).
		Msg("Configuration resolved")

	return &config, nil
}

func commandFrom(v *viper.Viper, key string) CommandConfig {
	return CommandConfig{
		Command: v.GetString(key + ".command"),
		Args:    v.GetStringSlice(key + ".args"),
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// Command returns the configured command for a simulator name (ngspice,
// xyce, hdev, openvaf). Unknown names return an empty command; the caller
// fails on use, not on load.
func (c *Config) Command(simulator string) CommandConfig {
	switch strings.ToLower(simulator) {
	case "ngspice":
		return c.Simulators.Ngspice
	case "xyce":
		return c.Simulators.Xyce
	case "hdev":
		return c.Simulators.Hdev
	case "openvaf":
		return c.Simulators.OpenVAF
	}
	return CommandConfig{}
}
