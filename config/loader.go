package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = "repofacade"
	envPrefix  = "REPOFACADE"
)

// LoadOptions tunes Load.
type LoadOptions struct {
	// File is an explicit config file. Empty searches SearchPaths.
	File string
	// SearchPaths default to the working directory and
	// $XDG_CONFIG_HOME/repofacade.
	SearchPaths []string
	// EnvFiles are loaded with godotenv before reading the environment.
	// Missing files are skipped. Defaults to ".env".
	EnvFiles []string
	// SkipValidation returns the config without calling Validate.
	SkipValidation bool
}

// Loaded carries the config and where it came from.
type Loaded struct {
	Config   RepoConfig
	FileUsed string
}

// DefaultSearchPaths returns the working directory and the XDG config dir.
func DefaultSearchPaths() []string {
	return []string{".", filepath.Join(xdg.ConfigHome, configName)}
}

// Load reads config from file, REPOFACADE_* environment variables and .env
// files, in increasing order of precedence for the environment.
func Load(opts LoadOptions) (*Loaded, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %q: %w", f, err)
		}
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	searchPaths := opts.SearchPaths
	if searchPaths == nil {
		searchPaths = DefaultSearchPaths()
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	var cfg RepoConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &Loaded{Config: cfg, FileUsed: v.ConfigFileUsed()}, nil
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal; viper only consults the environment for known keys.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("user.name", "")
	v.SetDefault("user.email", "")
	v.SetDefault("remote_url", "")
	v.SetDefault("path", "")
	v.SetDefault("branch", d.Branch)
	v.SetDefault("remote", d.Remote)
	v.SetDefault("auto_add", d.AutoAdd)
	v.SetDefault("ssh.public_key", "")
	v.SetDefault("ssh.private_key", "")
	v.SetDefault("ssh.private_key_path", "")
	v.SetDefault("ssh.passphrase", "")
	v.SetDefault("ssh.known_hosts", "")
	v.SetDefault("ssh.use_agent", d.SSH.UseAgent)
	v.SetDefault("ssh.username", "")
	v.SetDefault("ssh.allowed_hosts", []string{})
	v.SetDefault("credentials.helper", false)
	v.SetDefault("credentials.token", "")
	v.SetDefault("credentials.secret_provider", "")
	v.SetDefault("credentials.secret_path", "")
	v.SetDefault("credentials.aws_region", "")
	v.SetDefault("credentials.aws_endpoint", "")
	v.SetDefault("credentials.allowed_hosts", []string{})
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}
